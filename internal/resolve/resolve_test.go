// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperlib/internal/library"
	"github.com/pdiddy/paperlib/pkg/types"
)

// memRepo is an in-memory Repository enforcing unique identity fields.
type memRepo struct {
	mu     sync.Mutex
	papers []types.CanonicalPaper
	nextID int64

	// beforeCreate runs once before the next Create.
	beforeCreate func()
	creates      int
}

func (m *memRepo) FindByField(_ context.Context, field types.IdentityField, value string) (types.CanonicalPaper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		return types.CanonicalPaper{}, library.ErrNotFound
	}
	for _, p := range m.papers {
		v := p.Identity(field)
		if field == types.FieldID {
			v = fmt.Sprint(p.ID)
		}
		if v == value {
			return p, nil
		}
	}
	return types.CanonicalPaper{}, library.ErrNotFound
}

func (m *memRepo) Create(_ context.Context, info types.PaperInfo) (types.CanonicalPaper, error) {
	if hook := m.beforeCreate; hook != nil {
		m.beforeCreate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if err := m.checkUnique(0, info); err != nil {
		return types.CanonicalPaper{}, err
	}
	m.nextID++
	p := types.CanonicalPaper{ID: m.nextID, PaperInfo: info}
	m.papers = append(m.papers, p)
	return p, nil
}

func (m *memRepo) Save(_ context.Context, p *types.CanonicalPaper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(p.ID, p.PaperInfo); err != nil {
		return err
	}
	for i := range m.papers {
		if m.papers[i].ID == p.ID {
			m.papers[i] = *p
			return nil
		}
	}
	return library.ErrNotFound
}

func (m *memRepo) AttachDocument(ctx context.Context, p *types.CanonicalPaper, _ string, data []byte) error {
	p.FullTextMD5 = library.DocumentMD5(data)
	return m.Save(ctx, p)
}

func (m *memRepo) checkUnique(id int64, info types.PaperInfo) error {
	for _, p := range m.papers {
		if p.ID == id {
			continue
		}
		for _, f := range []types.IdentityField{types.FieldDOI, types.FieldPubMedID, types.FieldImportURL, types.FieldFullTextMD5} {
			if v := info.Identity(f); v != "" && v == p.Identity(f) {
				return fmt.Errorf("%w: %s", library.ErrConflict, f)
			}
		}
	}
	return nil
}

func (m *memRepo) seed(info types.PaperInfo) types.CanonicalPaper {
	p, err := m.Create(context.Background(), info)
	if err != nil {
		panic(err)
	}
	return p
}

func TestResolveOrCreate_CreatesWhenNothingMatches(t *testing.T) {
	repo := &memRepo{}
	r := New(repo, nil)

	p, created, err := r.ResolveOrCreate(context.Background(), Keys{types.FieldDOI: "10.1/new"},
		types.PaperInfo{Title: "New", FullTextMD5: "hash"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "10.1/new", p.DOI)
	assert.Equal(t, "New", p.Title)
	assert.Empty(t, p.PubMedID)
	assert.Equal(t, "hash", p.FullTextMD5, "the content hash is claimed at creation")
}

func TestResolveOrCreate_SameContentHashSamePaper(t *testing.T) {
	repo := &memRepo{}
	r := New(repo, nil)
	ctx := context.Background()

	first, created, err := r.ResolveOrCreate(ctx, Keys{types.FieldImportURL: "http://a.example/x.pdf"},
		types.PaperInfo{FullTextMD5: "abc"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.ResolveOrCreate(ctx, Keys{types.FieldImportURL: "http://b.example/x.pdf"},
		types.PaperInfo{FullTextMD5: "abc"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.papers, 1)
}

func TestResolveOrCreate_DOIIdempotent(t *testing.T) {
	repo := &memRepo{}
	r := New(repo, nil)
	ctx := context.Background()
	keys := Keys{types.FieldDOI: "10.1/same"}

	first, created, err := r.ResolveOrCreate(ctx, keys, types.PaperInfo{Title: "Same"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.ResolveOrCreate(ctx, keys, types.PaperInfo{Title: "Same"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.papers, 1)
}

func TestResolveOrCreate_FillsMissingNeverOverwrites(t *testing.T) {
	repo := &memRepo{}
	existing := repo.seed(types.PaperInfo{Title: "Known Title", DOI: "10.1/k", Journal: "Old Journal"})
	r := New(repo, nil)

	p, created, err := r.ResolveOrCreate(context.Background(),
		Keys{types.FieldDOI: "10.1/k", types.FieldPubMedID: "555", types.FieldTitle: "Other Title"},
		types.PaperInfo{Journal: "New Journal", Abstract: "filled", Authors: []string{"A"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, p.ID)
	assert.Equal(t, "Known Title", p.Title)
	assert.Equal(t, "Old Journal", p.Journal)
	assert.Equal(t, "555", p.PubMedID)
	assert.Equal(t, "filled", p.Abstract)
	assert.Equal(t, []string{"A"}, p.Authors)

	stored, err := repo.FindByField(context.Background(), types.FieldPubMedID, "555")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, stored.ID)
}

func TestResolveOrCreate_PrecedenceOrder(t *testing.T) {
	repo := &memRepo{}
	byTitle := repo.seed(types.PaperInfo{Title: "Shared"})
	byPubMed := repo.seed(types.PaperInfo{Title: "Other", PubMedID: "9"})
	r := New(repo, nil)

	p, _, err := r.ResolveOrCreate(context.Background(),
		Keys{types.FieldPubMedID: "9", types.FieldTitle: "Shared"}, types.PaperInfo{})
	require.NoError(t, err)
	assert.Equal(t, byPubMed.ID, p.ID)
	assert.NotEqual(t, byTitle.ID, p.ID)
}

func TestResolveOrCreate_ByID(t *testing.T) {
	repo := &memRepo{}
	existing := repo.seed(types.PaperInfo{Title: "By id"})
	r := New(repo, nil)

	p, created, err := r.ResolveOrCreate(context.Background(),
		Keys{}.WithID(existing.ID), types.PaperInfo{DOI: "10.1/late"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, p.ID)
	assert.Equal(t, "10.1/late", p.DOI)
}

func TestResolveOrCreate_SkipsIdentityHeldElsewhere(t *testing.T) {
	repo := &memRepo{}
	a := repo.seed(types.PaperInfo{Title: "A", PubMedID: "1"})
	b := repo.seed(types.PaperInfo{Title: "B", DOI: "10.1/b"})
	r := New(repo, nil)

	// Matches A by PubMed id; the URL is free but the DOI belongs to B.
	p, _, err := r.ResolveOrCreate(context.Background(),
		Keys{types.FieldPubMedID: "1", types.FieldImportURL: "http://x"},
		types.PaperInfo{})
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.ID)
	assert.Equal(t, "http://x", p.ImportURL)

	p, _, err = r.ResolveOrCreate(context.Background(),
		Keys{types.FieldID: fmt.Sprint(a.ID), types.FieldDOI: "10.1/b"}, types.PaperInfo{})
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.ID)
	assert.Empty(t, p.DOI)

	still, err := repo.FindByField(context.Background(), types.FieldDOI, "10.1/b")
	require.NoError(t, err)
	assert.Equal(t, b.ID, still.ID)
}

func TestResolveOrCreate_ConflictRereads(t *testing.T) {
	repo := &memRepo{}
	r := New(repo, nil)
	var winner types.CanonicalPaper
	// A concurrent writer creates the same DOI between lookup and create.
	repo.beforeCreate = func() {
		winner = repo.seed(types.PaperInfo{Title: "Raced", DOI: "10.1/race"})
	}

	p, created, err := r.ResolveOrCreate(context.Background(),
		Keys{types.FieldDOI: "10.1/race"}, types.PaperInfo{Abstract: "mine"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, p.ID)
	assert.Equal(t, "mine", p.Abstract)
	assert.Len(t, repo.papers, 1)
}

func TestResolveOrCreate_ConcurrentSameDOI(t *testing.T) {
	store, err := library.Open(types.LibraryConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer store.Close()
	r := New(store, nil)

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := r.ResolveOrCreate(context.Background(),
				Keys{types.FieldDOI: "10.1/concurrent"}, types.PaperInfo{Title: "Once"})
			assert.NoError(t, err)
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	papers, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestResolveOrCreate_ConcurrentSameContentHash(t *testing.T) {
	store, err := library.Open(types.LibraryConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer store.Close()
	r := New(store, nil)

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info := types.PaperInfo{
				ImportURL:   fmt.Sprintf("http://mirror%d.example/paper.pdf", i),
				FullTextMD5: "d41d8cd98f00b204e9800998ecf8427e",
			}
			p, _, err := r.ResolveOrCreate(context.Background(), nil, info)
			assert.NoError(t, err)
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	papers, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestKeysFor(t *testing.T) {
	k := KeysFor(types.PaperInfo{Title: "T", DOI: "10.1/x", Journal: "J"})
	assert.Equal(t, Keys{types.FieldTitle: "T", types.FieldDOI: "10.1/x"}, k)
	assert.Equal(t, "7", k.WithID(7)[types.FieldID])
	assert.NotContains(t, k, types.FieldID)
}

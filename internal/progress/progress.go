// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress tracks long-running import tasks for presentation. The
// pipeline registers a task when a resolution starts and removes it when
// the resolution finishes, whatever the outcome.
package progress

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier is the port the import pipeline reports through.
type Notifier interface {
	Add(id, status string)
	Remove(id string)
}

// NewTaskID returns an opaque task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// Task is a snapshot entry of a Registry.
type Task struct {
	ID     string
	Status string
}

// Registry is an in-memory Notifier that a UI can poll with Snapshot.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]string
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]string)}
}

// Add registers or updates a task.
func (r *Registry) Add(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		r.order = append(r.order, id)
	}
	r.tasks[id] = status
}

// Remove drops a task. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return
	}
	delete(r.tasks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the active tasks in registration order.
func (r *Registry) Snapshot() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Task{ID: id, Status: r.tasks[id]})
	}
	return out
}

// Len returns the number of active tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// LogNotifier reports task transitions to a logger. The CLI uses it in
// place of a polling UI.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// Add logs the task status.
func (n LogNotifier) Add(id, status string) {
	n.Log.WithField("task", id).Info(status)
}

// Remove logs task completion.
func (n LogNotifier) Remove(id string) {
	n.Log.WithField("task", id).Debug("task finished")
}

// Multi fans out to several notifiers.
type Multi []Notifier

// Add forwards to every notifier.
func (m Multi) Add(id, status string) {
	for _, n := range m {
		n.Add(id, status)
	}
}

// Remove forwards to every notifier.
func (m Multi) Remove(id string) {
	for _, n := range m {
		n.Remove(id)
	}
}

// Statuses returns the status strings of a snapshot, sorted. Handy for
// assertions and compact display.
func Statuses(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Status
	}
	sort.Strings(out)
	return out
}

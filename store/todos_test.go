package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedTodo(t *testing.T, db *DB, id, owner, desc string, done bool) *Todo {
	t.Helper()
	td := &Todo{ID: id, Owner: owner, Description: desc, Done: done}
	if err := db.Todos().Create(context.Background(), td); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	return td
}

func ids(todos []*Todo) []string {
	out := make([]string, len(todos))
	for i, td := range todos {
		out[i] = td.ID
	}
	return out
}

func TestTodos_CreateGet(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	seedTodo(t, db, "t1", "alice.smith", "buy milk", false)

	got, err := db.Todos().Get(ctx, "t1", "ALICE.SMITH")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if got.Description != "buy milk" || got.Done || got.Version != 0 {
		t.Errorf("got %+v", got)
	}

	if _, err := db.Todos().Get(ctx, "t1", "bob.jones"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(other owner) error = %v, want ErrNotFound", err)
	}
	if _, err := db.Todos().Get(ctx, "t1", ""); err != nil {
		t.Errorf("Get(any owner) error = %v", err)
	}

	dup := &Todo{ID: "t1", Owner: "x", Description: "y"}
	if err := db.Todos().Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Create error = %v, want ErrConflict", err)
	}
}

func TestTodos_List(t *testing.T) {
	db, clock := newTestDB(t)
	ctx := context.Background()
	seedTodo(t, db, "a", "alice.smith", "Buy milk", false)
	clock.Advance(time.Second)
	seedTodo(t, db, "b", "alice.smith", "walk dog", true)
	clock.Advance(time.Second)
	seedTodo(t, db, "c", "bob.jones", "buy bread", false)

	done := true
	tests := []struct {
		name string
		q    TodoQuery
		want []string
	}{
		{"all by creation", TodoQuery{}, []string{"a", "b", "c"}},
		{"owner scoped", TodoQuery{Owner: "Alice.Smith"}, []string{"a", "b"}},
		{"description substring ignores case", TodoQuery{Description: "BUY"}, []string{"a", "c"}},
		{"done filter", TodoQuery{Done: &done}, []string{"b"}},
		{"sort descending", TodoQuery{Sort: []string{"-createdAt"}}, []string{"c", "b", "a"}},
		{"sort by description", TodoQuery{Sort: []string{"description"}}, []string{"a", "c", "b"}},
		{"unknown sort field ignored", TodoQuery{Sort: []string{"bogus"}}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Todos().List(ctx, tt.q)
			if err != nil {
				t.Fatalf("List error = %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("List = %v, want %v", gotIDs, tt.want)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.want[i] {
					t.Fatalf("List = %v, want %v", gotIDs, tt.want)
				}
			}
		})
	}
}

func TestTodos_Update(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	td := seedTodo(t, db, "u1", "alice.smith", "draft", false)

	stale := *td
	td.Done = true
	td.Description = "final"
	if err := db.Todos().Update(ctx, td); err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if td.Version != 1 {
		t.Errorf("Version = %d, want 1", td.Version)
	}
	got, _ := db.Todos().Get(ctx, "u1", "")
	if !got.Done || got.Description != "final" {
		t.Errorf("stored = %+v", got)
	}

	if err := db.Todos().Update(ctx, &stale); !errors.Is(err, ErrStaleVersion) {
		t.Errorf("stale Update error = %v, want ErrStaleVersion", err)
	}
	if err := db.Todos().Update(ctx, &Todo{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTodos_DeleteAndClear(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	seedTodo(t, db, "d1", "alice.smith", "one", false)
	seedTodo(t, db, "d2", "alice.smith", "two", false)
	seedTodo(t, db, "d3", "bob.jones", "three", false)

	if err := db.Todos().Delete(ctx, "d1", "bob.jones"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(other owner) error = %v, want ErrNotFound", err)
	}
	if err := db.Todos().Delete(ctx, "d1", "alice.smith"); err != nil {
		t.Errorf("Delete error = %v", err)
	}
	n, err := db.Todos().Clear(ctx)
	if err != nil || n != 2 {
		t.Errorf("Clear() = (%d, %v), want (2, nil)", n, err)
	}
}

package main

import (
	"bytes"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/0xmhha/bead-sync/pkg/ledger"
	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/registry"
)

func TestResolveRoots(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		configured []string
		want       []string
	}{
		{
			name:       "args win",
			args:       []string{"/work/a"},
			configured: []string{"/work/b"},
			want:       []string{"/work/a"},
		},
		{
			name:       "config fallback",
			args:       nil,
			configured: []string{"/work/b", "/work/c"},
			want:       []string{"/work/b", "/work/c"},
		},
		{
			name:       "both empty",
			args:       nil,
			configured: nil,
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveRoots(tt.args, tt.configured)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolveRoots() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLockedWriterSerializesWrites(t *testing.T) {
	var buf bytes.Buffer
	w := &lockedWriter{w: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := w.Write([]byte("abcd")); err != nil {
					t.Errorf("Write() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if buf.Len() != 10*100*4 {
		t.Errorf("buffer length = %d, want %d", buf.Len(), 10*100*4)
	}
}

func TestDescribeLedgerError(t *testing.T) {
	err := describeLedgerError(&ledger.Error{
		Code:    ledger.CodeConflict,
		Message: "scope src/lib overlaps active reservation src",
		Holder:  "amp-worker-1",
	})

	want := "conflict: scope src/lib overlaps active reservation src (held by amp-worker-1)"
	if err.Error() != want {
		t.Errorf("describeLedgerError() = %q, want %q", err.Error(), want)
	}
}

func TestLookupAgentID(t *testing.T) {
	reg, err := registry.New(registry.Config{
		DBPath: filepath.Join(t.TempDir(), "agents.db"),
	}, logger.Noop())
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	defer reg.Close()

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// By ID.
	id, err := lookupAgentID(reg, rec.ID)
	if err != nil || id != rec.ID {
		t.Errorf("lookupAgentID(id) = %q, %v", id, err)
	}

	// By name.
	id, err = lookupAgentID(reg, "amp-worker-1")
	if err != nil || id != rec.ID {
		t.Errorf("lookupAgentID(name) = %q, %v", id, err)
	}

	// Unknown.
	if _, err := lookupAgentID(reg, "nobody"); err == nil {
		t.Error("lookupAgentID(unknown) expected error")
	}
}

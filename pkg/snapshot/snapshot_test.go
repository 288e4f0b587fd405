package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/greatvovan/bacon-number/pkg/graph"
	"github.com/greatvovan/bacon-number/pkg/leaselock"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func testGraph() *graph.Store {
	g := graph.New(0)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 4)
	return g.Freeze()
}

func assertSameGraph(t *testing.T, want, got *graph.Store) {
	t.Helper()
	if got.Len() != want.Len() || got.EdgeCount() != want.EdgeCount() {
		t.Fatalf("expected %d nodes/%d edges, got %d/%d", want.Len(), want.EdgeCount(), got.Len(), got.EdgeCount())
	}
	want.Edges(func(u, v graph.ID) bool {
		if !got.HasEdge(u, v) {
			t.Fatalf("expected edge %d-%d to survive", u, v)
		}
		return true
	})
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := NewFile(filepath.Join(t.TempDir(), "nested", "graph.bin"))

	if ok, err := f.Exists(ctx); ok || err != nil {
		t.Fatalf("expected no snapshot, got %v %v", ok, err)
	}
	if _, err := f.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := testGraph()
	if err := f.Save(ctx, want); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ok, _ := f.Exists(ctx); !ok {
		t.Fatal("expected snapshot to exist after save")
	}

	got, err := f.Load(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	assertSameGraph(t, want, got)

	entries, _ := os.ReadDir(filepath.Dir(f.Path))
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.bin")
	if err := os.WriteFile(path, []byte("definitely not a graph"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFile(path).Load(context.Background())
	if !errors.Is(err, graph.ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := NewS3(fake, "graphs", "snapshots/graph.bin")

	if ok, err := s.Exists(ctx); ok || err != nil {
		t.Fatalf("expected no snapshot, got %v %v", ok, err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := testGraph()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := fake.objects["graphs/snapshots/graph.bin"]; !ok {
		t.Fatalf("expected object under bucket/key, got %v", fake.objects)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	assertSameGraph(t, want, got)
}

type fakeLocker struct {
	err   error
	calls int
}

func (l *fakeLocker) WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error {
	l.calls++
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type countingStore struct {
	Nop
	saves int
}

func (c *countingStore) Save(context.Context, *graph.Store) error {
	c.saves++
	return nil
}

func TestLocked_Save(t *testing.T) {
	tests := []struct {
		name      string
		lockErr   error
		wantErr   bool
		wantSaves int
	}{
		{name: "lease acquired", wantSaves: 1},
		{name: "lease busy", lockErr: leaselock.ErrBusy, wantSaves: 0},
		{name: "lock failure", lockErr: errors.New("db down"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &countingStore{}
			locker := &fakeLocker{err: tt.lockErr}
			l := NewLocked(inner, locker, "", leaselock.Options{})

			err := l.Save(context.Background(), testGraph())
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if inner.saves != tt.wantSaves {
				t.Fatalf("expected %d saves, got %d", tt.wantSaves, inner.saves)
			}
			if l.key != DefaultLockKey {
				t.Fatalf("expected default key, got %q", l.key)
			}
		})
	}
}

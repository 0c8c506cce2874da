package engine

import (
	"context"
	"testing"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestAllocateCodeUniqueAmongLive(t *testing.T) {
	ctx := context.Background()
	st := NewStore(memory.NewCodeRegistry())

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := st.AllocateCode(ctx)
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("code %s allocated twice", code)
		}
		seen[code] = struct{}{}
		st.Add(newSession(code, code, "quiz-1", "host-1", nil))
	}
}

func TestGetByCodeExcludesEnded(t *testing.T) {
	ctx := context.Background()
	st := NewStore(memory.NewCodeRegistry())
	code, err := st.AllocateCode(ctx)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	sess := newSession("s1", code, "quiz-1", "host-1", nil)
	st.Add(sess)

	if _, ok := st.GetByCode(code); !ok {
		t.Fatal("expected live session resolvable by code")
	}
	sess.End()
	if _, ok := st.GetByCode(code); ok {
		t.Fatal("ended session must not resolve by code")
	}
	// By id it is still resident until persisted and removed.
	if _, ok := st.Get("s1"); !ok {
		t.Fatal("expected session still resident by id")
	}
}

func TestRemoveReleasesCode(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewCodeRegistry()
	st := NewStore(reg)
	code, err := st.AllocateCode(ctx)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	st.Add(newSession("s1", code, "quiz-1", "host-1", nil))

	st.Remove(ctx, "s1")
	if _, ok := st.Get("s1"); ok {
		t.Fatal("expected session evicted")
	}
	if st.Len() != 0 {
		t.Fatalf("expected empty store, got %d", st.Len())
	}
	ok, err := reg.Claim(ctx, code)
	if err != nil || !ok {
		t.Fatalf("expected code reclaimable after release, ok=%v err=%v", ok, err)
	}
}

func TestAllocateCodeExhaustion(t *testing.T) {
	ctx := context.Background()
	reg := deniedRegistry{}
	st := NewStore(reg)
	if _, err := st.AllocateCode(ctx); err != domain.ErrCodeExhausted {
		t.Fatalf("expected ErrCodeExhausted, got %v", err)
	}
}

// deniedRegistry refuses every claim, as if all codes were held elsewhere.
type deniedRegistry struct{}

func (deniedRegistry) Claim(context.Context, string) (bool, error) { return false, nil }
func (deniedRegistry) Release(context.Context, string) error       { return nil }

package clips

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

func TestValidate_RulesInOrder(t *testing.T) {
	info := &media.VideoInfo{Duration: 100}

	tests := []struct {
		name      string
		c         Candidate
		info      *media.VideoInfo
		wantValid bool
		wantField string
	}{
		{"valid", Candidate{"A", 0, 50}, info, true, ""},
		{"valid to the end", Candidate{"A", 50, 100}, info, true, ""},
		{"blank name", Candidate{"   ", 0, 10}, info, false, FieldName},
		{"blank name wins over bad times", Candidate{"", -1, -2}, info, false, FieldName},
		{"negative start", Candidate{"A", -0.1, 10}, info, false, FieldStartTime},
		{"nan start", Candidate{"A", math.NaN(), 10}, info, false, FieldStartTime},
		{"end equals start", Candidate{"A", 5, 5}, info, false, FieldEndTime},
		{"end before start", Candidate{"A", 6, 5}, info, false, FieldEndTime},
		{"start at duration", Candidate{"A", 100, 101}, info, false, FieldStartTime},
		{"end past duration", Candidate{"A", 10, 100.01}, info, false, FieldEndTime},
		{"no video skips duration", Candidate{"A", 500, 600}, nil, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.c, tt.info)
			if got.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (%q)", got.Valid, tt.wantValid, got.Error)
			}
			if got.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", got.Field, tt.wantField)
			}
			if !got.Valid && got.Error == "" {
				t.Error("invalid result must carry a message")
			}
		})
	}
}

func TestValidate_DurationInMessage(t *testing.T) {
	info := &media.VideoInfo{Duration: 12.5}
	for _, c := range []Candidate{{"A", 13, 14}, {"A", 1, 13}} {
		got := Validate(c, info)
		if !strings.Contains(got.Error, "12.50") {
			t.Errorf("Validate(%+v) message %q lacks the duration", c, got.Error)
		}
	}
}

func TestValidate_Property(t *testing.T) {
	duration := 10.0
	info := &media.VideoInfo{Duration: duration}
	names := []string{"", " ", "x"}
	times := []float64{-1, 0, 0.5, 5, 9.99, 10, 10.01}

	for _, name := range names {
		for _, start := range times {
			for _, end := range times {
				want := strings.TrimSpace(name) != "" && start >= 0 && end > start && start < duration && end <= duration
				got := Validate(Candidate{name, start, end}, info).Valid
				if got != want {
					t.Fatalf("Validate(%q, %v, %v) = %v, want %v", name, start, end, got, want)
				}
			}
		}
	}
}

func newLoadedStore(t *testing.T, duration float64) (*Store, *session.Session) {
	t.Helper()
	sess := session.New(nil)
	sess.Load("/v/source.mp4", media.VideoInfo{Duration: duration})
	st := NewStore(sess, nil)
	t.Cleanup(st.Close)
	return st, sess
}

func TestStore_AddAssignsIDsInOrder(t *testing.T) {
	st, _ := newLoadedStore(t, 100)

	r1 := st.Add(Candidate{"A", 0, 50})
	r2 := st.Add(Candidate{"B", 40, 60}) // overlap is allowed
	if !r1.Valid || !r2.Valid {
		t.Fatalf("adds rejected: %+v %+v", r1, r2)
	}
	if r1.ID == "" || r1.ID == r2.ID {
		t.Fatalf("ids not unique: %q %q", r1.ID, r2.ID)
	}

	segs := st.Segments()
	if len(segs) != 2 || segs[0].Name != "A" || segs[1].Name != "B" || segs[0].ID != r1.ID {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestStore_AddBlankNameRejected(t *testing.T) {
	st, _ := newLoadedStore(t, 100)
	st.Add(Candidate{"A", 0, 10})

	res := st.Add(Candidate{"  ", 0, 10})
	if res.Valid {
		t.Fatal("blank name accepted")
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
}

func TestStore_AddValidatesAgainstLoadedDuration(t *testing.T) {
	st, _ := newLoadedStore(t, 30)
	if res := st.Add(Candidate{"late", 10, 31}); res.Valid {
		t.Fatal("segment past the video end accepted")
	}
}

func TestStore_UpdateInPlace(t *testing.T) {
	st, _ := newLoadedStore(t, 100)
	a := st.Add(Candidate{"A", 0, 10}).ID
	st.Add(Candidate{"B", 10, 20})

	res := st.Update(a, Candidate{"A2", 5, 15})
	if !res.Valid {
		t.Fatalf("update rejected: %+v", res)
	}

	segs := st.Segments()
	if segs[0].ID != a || segs[0].Name != "A2" || segs[0].StartTime != 5 {
		t.Errorf("update not applied in place: %+v", segs)
	}
}

func TestStore_UpdateInvalidLeavesSegment(t *testing.T) {
	st, _ := newLoadedStore(t, 100)
	a := st.Add(Candidate{"A", 0, 10}).ID

	if res := st.Update(a, Candidate{"A", 10, 5}); res.Valid {
		t.Fatal("invalid update accepted")
	}
	if got, _ := st.Get(a); got.EndTime != 10 {
		t.Errorf("segment changed by rejected update: %+v", got)
	}
}

func TestStore_UpdateUnknownID(t *testing.T) {
	st, _ := newLoadedStore(t, 100)
	st.Add(Candidate{"A", 0, 10})
	before := st.Segments()

	res := st.Update("missing", Candidate{"X", 0, 1})
	if res.Valid || !res.NotFound {
		t.Fatalf("expected not-found result, got %+v", res)
	}
	after := st.Segments()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("store changed: %+v", after)
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	st, _ := newLoadedStore(t, 100)
	a := st.Add(Candidate{"A", 0, 10}).ID
	st.Add(Candidate{"B", 10, 20})

	if st.Delete("nope") {
		t.Error("Delete of unknown id reported success")
	}
	if st.Len() != 2 {
		t.Fatalf("Len = %d after no-op delete", st.Len())
	}

	if !st.Delete(a) || st.Len() != 1 || st.Segments()[0].Name != "B" {
		t.Fatalf("Delete did not remove A: %+v", st.Segments())
	}

	st.Clear()
	if st.Len() != 0 {
		t.Errorf("Len = %d after Clear", st.Len())
	}
}

func TestStore_ClearedOnVideoChange(t *testing.T) {
	st, sess := newLoadedStore(t, 100)
	st.Add(Candidate{"A", 0, 10})

	sess.Load("/v/other.mp4", media.VideoInfo{Duration: 5})
	if st.Len() != 0 {
		t.Fatalf("segments survived a video replace: %d", st.Len())
	}

	st.Add(Candidate{"B", 0, 5})
	sess.Clear()
	if st.Len() != 0 {
		t.Fatalf("segments survived an unload: %d", st.Len())
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	st, _ := newLoadedStore(t, 100)
	st.Add(Candidate{"A", 0, 10})

	snap := st.Segments()
	snap[0].Name = "mutated"
	if st.Segments()[0].Name != "A" {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestStore_NoSession(t *testing.T) {
	st := NewStore(nil, nil)
	if res := st.Add(Candidate{"A", 1000, 2000}); !res.Valid {
		t.Fatalf("store without session should skip duration checks: %+v", res)
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	st, _ := newLoadedStore(t, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Add(Candidate{"A", 0, 1})
			_ = st.Segments()
		}()
	}
	wg.Wait()

	if st.Len() != 50 {
		t.Errorf("Len = %d, want 50", st.Len())
	}
}

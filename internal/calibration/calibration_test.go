package calibration

import (
	"errors"
	"math"
	"sync"
	"testing"
)

// fakeSaver records persisted parameter sets.
type fakeSaver struct {
	mu    sync.Mutex
	saves []Params
	fail  error
}

func (f *fakeSaver) SetCalibration(tempOffset, humOffset, cpuTempFactor float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saves = append(f.saves, Params{
		TempOffsetC:   tempOffset,
		HumOffsetPct:  humOffset,
		CPUTempFactor: cpuTempFactor,
	})
	return nil
}

func (f *fakeSaver) lastSave() (Params, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return Params{}, false
	}
	return f.saves[len(f.saves)-1], true
}

func defaultParams() Params {
	return Params{TempOffsetC: 0, HumOffsetPct: 0, CPUTempFactor: 0.55}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   float64
		wantErr bool
	}{
		{name: "temp offset in range", field: FieldTempOffset, value: 2.5},
		{name: "temp offset at bound", field: FieldTempOffset, value: -10},
		{name: "temp offset too low", field: FieldTempOffset, value: -10.1, wantErr: true},
		{name: "temp offset too high", field: FieldTempOffset, value: 11, wantErr: true},
		{name: "hum offset in range", field: FieldHumOffset, value: -3},
		{name: "hum offset too high", field: FieldHumOffset, value: 20.5, wantErr: true},
		{name: "factor in range", field: FieldCPUTempFactor, value: 1.8},
		{name: "factor zero rejected", field: FieldCPUTempFactor, value: 0, wantErr: true},
		{name: "factor negative rejected", field: FieldCPUTempFactor, value: -0.5, wantErr: true},
		{name: "factor too large", field: FieldCPUTempFactor, value: 10.5, wantErr: true},
		{name: "NaN rejected", field: FieldTempOffset, value: math.NaN(), wantErr: true},
		{name: "Inf rejected", field: FieldHumOffset, value: math.Inf(1), wantErr: true},
		{name: "unknown field", field: "poll_sec", value: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.field, tt.value)
			if tt.wantErr && err == nil {
				t.Errorf("Validate(%s, %v) = nil, want error", tt.field, tt.value)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate(%s, %v) = %v, want nil", tt.field, tt.value, err)
			}

			if tt.wantErr && err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error is not a *ValidationError: %T", err)
				} else if verr.Field != tt.field {
					t.Errorf("error field = %s, want %s", verr.Field, tt.field)
				}
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	saver := &fakeSaver{}
	store := NewStore(defaultParams(), saver, nil)

	applied, err := store.Update(FieldHumOffset, -3.0)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if applied.HumOffsetPct != -3.0 {
		t.Errorf("applied hum offset = %v, want -3.0", applied.HumOffsetPct)
	}

	snap := store.Snapshot()
	if snap.HumOffsetPct != -3.0 {
		t.Errorf("snapshot hum offset = %v, want -3.0", snap.HumOffsetPct)
	}
	if snap.CPUTempFactor != 0.55 {
		t.Errorf("snapshot factor = %v, want unchanged 0.55", snap.CPUTempFactor)
	}

	// Full parameter set persisted synchronously
	saved, ok := saver.lastSave()
	if !ok {
		t.Fatal("nothing persisted")
	}
	if saved != snap {
		t.Errorf("persisted %+v, want %+v", saved, snap)
	}
}

func TestStoreUpdateRejectionLeavesState(t *testing.T) {
	saver := &fakeSaver{}
	store := NewStore(defaultParams(), saver, nil)

	if _, err := store.Update(FieldCPUTempFactor, 0); err == nil {
		t.Fatal("expected rejection of zero factor")
	}

	if got := store.Snapshot().CPUTempFactor; got != 0.55 {
		t.Errorf("factor after rejection = %v, want 0.55", got)
	}
	if _, ok := saver.lastSave(); ok {
		t.Error("rejected update must not persist")
	}
}

func TestStoreUpdatePersistenceFailure(t *testing.T) {
	saver := &fakeSaver{fail: errors.New("disk full")}
	store := NewStore(defaultParams(), saver, nil)

	// Persistence failure keeps the in-memory update
	if _, err := store.Update(FieldTempOffset, 1.5); err != nil {
		t.Fatalf("Update returned error on persistence failure: %v", err)
	}
	if got := store.Snapshot().TempOffsetC; got != 1.5 {
		t.Errorf("temp offset = %v, want 1.5", got)
	}
}

func TestStoreInitialValidation(t *testing.T) {
	store := NewStore(Params{
		TempOffsetC:   100,        // out of range
		HumOffsetPct:  5,          // fine
		CPUTempFactor: math.NaN(), // invalid
	}, nil, nil)

	snap := store.Snapshot()
	if snap.TempOffsetC != 0 {
		t.Errorf("invalid initial temp offset not defaulted: %v", snap.TempOffsetC)
	}
	if snap.HumOffsetPct != 5 {
		t.Errorf("valid initial hum offset changed: %v", snap.HumOffsetPct)
	}
	if snap.CPUTempFactor != 0.55 {
		t.Errorf("invalid initial factor not defaulted: %v", snap.CPUTempFactor)
	}
}

// A snapshot racing with updates must never observe a half-applied
// record: every observed value must be one that was actually written.
func TestStoreConcurrentSnapshotUpdate(t *testing.T) {
	store := NewStore(defaultParams(), nil, nil)

	valid := map[float64]bool{0: true}
	for _, v := range []float64{1, 2, 3, 4, 5} {
		valid[v] = true
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(i%5 + 1)
			store.Update(FieldTempOffset, v)
			store.Update(FieldHumOffset, v)
		}
	}()

	for i := 0; i < 1000; i++ {
		snap := store.Snapshot()
		if !valid[snap.TempOffsetC] || !valid[snap.HumOffsetPct] {
			t.Fatalf("snapshot observed unwritten values: %+v", snap)
		}
	}

	close(stop)
	wg.Wait()
}

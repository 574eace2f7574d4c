package sensor

import "testing"

func TestScalar(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  float64
		ok    bool
	}{
		{
			name:  "HR uses last sample bpm",
			batch: HRBatch{Samples: []HRSample{{BPM: 61}, {BPM: 74}}},
			want:  74,
			ok:    true,
		},
		{
			name:  "PPI uses last interval",
			batch: PPIBatch{Samples: []PPISample{{IntervalMS: 820}, {IntervalMS: 835}}},
			want:  835,
			ok:    true,
		},
		{
			name:  "ACC uses x axis of last sample",
			batch: AccBatch{Samples: []XYZSample{{X: 0.1}, {X: -0.4, Y: 9.8}}},
			want:  -0.4,
			ok:    true,
		},
		{
			name:  "gyro uses x axis",
			batch: GyroBatch{Samples: []XYZSample{{X: 12.5}}},
			want:  12.5,
			ok:    true,
		},
		{
			name:  "magnetometer uses x axis",
			batch: MagBatch{Samples: []XYZSample{{X: -3.25}}},
			want:  -3.25,
			ok:    true,
		},
		{
			name:  "PPG uses first channel of last sample",
			batch: PPGBatch{Samples: []PPGSample{{Channels: []float64{100}}, {Channels: []float64{250, 260}}}},
			want:  250,
			ok:    true,
		},
		{
			name:  "ECG uses voltage",
			batch: ECGBatch{Samples: []ECGSample{{VoltageUV: 512}}},
			want:  512,
			ok:    true,
		},
		{
			name:  "temperature uses celsius",
			batch: TempBatch{Samples: []TempSample{{Celsius: 36.7}}},
			want:  36.7,
			ok:    true,
		},
		{
			name:  "skin temperature uses celsius",
			batch: SkinTempBatch{Samples: []TempSample{{Celsius: 33.1}}},
			want:  33.1,
			ok:    true,
		},
		{
			name:  "empty batch has no scalar",
			batch: HRBatch{},
			ok:    false,
		},
		{
			name:  "PPG sample without channels has no scalar",
			batch: PPGBatch{Samples: []PPGSample{{}}},
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Scalar(tt.batch)
			if ok != tt.ok {
				t.Fatalf("Scalar() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Scalar() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBatchSignals(t *testing.T) {
	batches := []Batch{
		HRBatch{}, PPIBatch{}, AccBatch{}, PPGBatch{}, ECGBatch{},
		GyroBatch{}, MagBatch{}, TempBatch{}, SkinTempBatch{},
	}
	seen := make(map[SignalType]bool)
	for _, b := range batches {
		sig := b.Signal()
		if !sig.Valid() {
			t.Errorf("batch %T reports invalid signal %q", b, sig)
		}
		if seen[sig] {
			t.Errorf("signal %q claimed by more than one batch type", sig)
		}
		seen[sig] = true
	}
	if len(seen) != len(allSignalTypes) {
		t.Errorf("batch variants cover %d signal types, want %d", len(seen), len(allSignalTypes))
	}
}

func TestParseSignalType(t *testing.T) {
	if _, err := ParseSignalType("HR"); err != nil {
		t.Fatalf("ParseSignalType(HR) error: %v", err)
	}
	if _, err := ParseSignalType("bogus"); err == nil {
		t.Fatal("ParseSignalType(bogus) expected error")
	}
}

func TestSettingSetClone(t *testing.T) {
	orig := SettingSet{SettingSampleRate: {52, 100}}
	cpy := orig.Clone()
	cpy[SettingSampleRate][0] = 999
	if orig[SettingSampleRate][0] != 52 {
		t.Error("Clone() shares backing array with original")
	}
}

func TestCapabilitiesTypes(t *testing.T) {
	caps := Capabilities{Signals: map[SignalType]SettingPair{
		SignalPPI: {},
		SignalACC: {},
		SignalHR:  {},
	}}
	types := caps.Types()
	if len(types) != 3 {
		t.Fatalf("Types() returned %d entries, want 3", len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Errorf("Types() not sorted: %v", types)
		}
	}
	if !caps.Supports(SignalHR) || caps.Supports(SignalECG) {
		t.Error("Supports() gave wrong answers")
	}
	if caps.IsEmpty() {
		t.Error("IsEmpty() true for non-empty capabilities")
	}
}

package sensor

// Sample batches are decoded once at the transport boundary into one
// concrete Batch variant per signal type, with the signal type as the
// discriminant. Downstream code switches on the concrete type and is
// exhaustively checked by the compiler instead of relying on runtime
// casts of an opaque payload.

// Batch is one batch of samples received from a device stream.
type Batch interface {
	// Signal returns the signal type this batch carries.
	Signal() SignalType

	// Len returns the number of samples in the batch.
	Len() int
}

// HRSample is one heart rate reading.
type HRSample struct {
	BPM             int   `json:"bpm"`
	RRIntervalsMS   []int `json:"rr_intervals_ms,omitempty"`
	ContactDetected bool  `json:"contact_detected"`
}

// PPISample is one peak-to-peak interval reading.
type PPISample struct {
	IntervalMS      int  `json:"interval_ms"`
	ErrorEstimateMS int  `json:"error_estimate_ms"`
	BlockerBit      bool `json:"blocker_bit"`
	SkinContact     bool `json:"skin_contact"`
}

// XYZSample is one three-axis reading (accelerometer, gyroscope or
// magnetometer, depending on the enclosing batch).
type XYZSample struct {
	TimestampNS int64   `json:"timestamp_ns"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
}

// ECGSample is one electrocardiogram voltage reading in microvolts.
type ECGSample struct {
	TimestampNS int64   `json:"timestamp_ns"`
	VoltageUV   float64 `json:"voltage_uv"`
}

// PPGSample is one photoplethysmography reading across channels.
type PPGSample struct {
	TimestampNS int64     `json:"timestamp_ns"`
	Channels    []float64 `json:"channels"`
}

// TempSample is one temperature reading in degrees Celsius.
type TempSample struct {
	TimestampNS int64   `json:"timestamp_ns"`
	Celsius     float64 `json:"celsius"`
}

// HRBatch carries heart rate samples.
type HRBatch struct {
	Samples []HRSample `json:"samples"`
}

func (HRBatch) Signal() SignalType { return SignalHR }
func (b HRBatch) Len() int         { return len(b.Samples) }

// PPIBatch carries peak-to-peak interval samples.
type PPIBatch struct {
	Samples []PPISample `json:"samples"`
}

func (PPIBatch) Signal() SignalType { return SignalPPI }
func (b PPIBatch) Len() int         { return len(b.Samples) }

// AccBatch carries accelerometer samples.
type AccBatch struct {
	Samples []XYZSample `json:"samples"`
}

func (AccBatch) Signal() SignalType { return SignalACC }
func (b AccBatch) Len() int         { return len(b.Samples) }

// GyroBatch carries gyroscope samples.
type GyroBatch struct {
	Samples []XYZSample `json:"samples"`
}

func (GyroBatch) Signal() SignalType { return SignalGyro }
func (b GyroBatch) Len() int         { return len(b.Samples) }

// MagBatch carries magnetometer samples.
type MagBatch struct {
	Samples []XYZSample `json:"samples"`
}

func (MagBatch) Signal() SignalType { return SignalMag }
func (b MagBatch) Len() int         { return len(b.Samples) }

// PPGBatch carries photoplethysmography samples.
type PPGBatch struct {
	Samples []PPGSample `json:"samples"`
}

func (PPGBatch) Signal() SignalType { return SignalPPG }
func (b PPGBatch) Len() int         { return len(b.Samples) }

// ECGBatch carries electrocardiogram samples.
type ECGBatch struct {
	Samples []ECGSample `json:"samples"`
}

func (ECGBatch) Signal() SignalType { return SignalECG }
func (b ECGBatch) Len() int         { return len(b.Samples) }

// TempBatch carries body temperature samples.
type TempBatch struct {
	Samples []TempSample `json:"samples"`
}

func (TempBatch) Signal() SignalType { return SignalTemp }
func (b TempBatch) Len() int         { return len(b.Samples) }

// SkinTempBatch carries skin temperature samples.
type SkinTempBatch struct {
	Samples []TempSample `json:"samples"`
}

func (SkinTempBatch) Signal() SignalType { return SignalSkinTemp }
func (b SkinTempBatch) Len() int         { return len(b.Samples) }

// Scalar projects a batch onto a single instantaneous reading suitable
// for live display: the most recent sample's primary value. Returns
// false when the batch is empty.
func Scalar(b Batch) (float64, bool) {
	switch v := b.(type) {
	case HRBatch:
		if n := len(v.Samples); n > 0 {
			return float64(v.Samples[n-1].BPM), true
		}
	case PPIBatch:
		if n := len(v.Samples); n > 0 {
			return float64(v.Samples[n-1].IntervalMS), true
		}
	case AccBatch:
		if n := len(v.Samples); n > 0 {
			return v.Samples[n-1].X, true
		}
	case GyroBatch:
		if n := len(v.Samples); n > 0 {
			return v.Samples[n-1].X, true
		}
	case MagBatch:
		if n := len(v.Samples); n > 0 {
			return v.Samples[n-1].X, true
		}
	case PPGBatch:
		if n := len(v.Samples); n > 0 && len(v.Samples[n-1].Channels) > 0 {
			return v.Samples[n-1].Channels[0], true
		}
	case ECGBatch:
		if n := len(v.Samples); n > 0 {
			return v.Samples[n-1].VoltageUV, true
		}
	case TempBatch:
		if n := len(v.Samples); n > 0 {
			return v.Samples[n-1].Celsius, true
		}
	case SkinTempBatch:
		if n := len(v.Samples); n > 0 {
			return v.Samples[n-1].Celsius, true
		}
	}
	return 0, false
}

package dsp

import (
	"math"
	"time"
)

// MeterConfig tunes one meter instance. Zero values fall back to the
// defaults below.
type MeterConfig struct {
	PeakHoldTime      time.Duration // hold before decay starts
	PeakDecayRate     float64       // dB per tick once decaying
	ClipLatchDuration time.Duration // how long clip flags stay latched
	ShortTermWindow   time.Duration // short-term LUFS averaging window
	Weighting         bool          // K-weighting before RMS/LUFS
}

// DefaultMeterConfig returns the standard meter tuning.
func DefaultMeterConfig() MeterConfig {
	return MeterConfig{
		PeakHoldTime:      2 * time.Second,
		PeakDecayRate:     0.5,
		ClipLatchDuration: 3 * time.Second,
		ShortTermWindow:   3 * time.Second,
		Weighting:         true,
	}
}

func (c MeterConfig) withDefaults() MeterConfig {
	d := DefaultMeterConfig()
	if c.PeakHoldTime <= 0 {
		c.PeakHoldTime = d.PeakHoldTime
	}
	if c.PeakDecayRate <= 0 {
		c.PeakDecayRate = d.PeakDecayRate
	}
	if c.ClipLatchDuration <= 0 {
		c.ClipLatchDuration = d.ClipLatchDuration
	}
	if c.ShortTermWindow <= 0 {
		c.ShortTermWindow = d.ShortTermWindow
	}
	return c
}

// MeteringSnapshot is the per-tick measurement output. All dB values are
// clamped to [DBMin, DBMax] and LUFS values to [LUFSMin, 0]; a snapshot
// never carries NaN or infinities. Snapshots are values: consumers read
// the latest one and nothing is retained historically.
type MeteringSnapshot struct {
	RMSLeft           float64 `json:"rmsLeft"`
	RMSRight          float64 `json:"rmsRight"`
	PeakLeft          float64 `json:"peakLeft"`
	PeakRight         float64 `json:"peakRight"`
	LivePeakLeft      float64 `json:"livePeakLeft"`
	LivePeakRight     float64 `json:"livePeakRight"`
	TruePeakLeft      float64 `json:"truePeakLeft"`
	TruePeakRight     float64 `json:"truePeakRight"`
	LUFSMomentary     float64 `json:"lufsMomentary"`
	LUFSShortTerm     float64 `json:"lufsShortTerm"`
	LUFSIntegrated    float64 `json:"lufsIntegrated"`
	StereoCorrelation float64 `json:"stereoCorrelation"`
	DynamicRange      float64 `json:"dynamicRange"`
	ClipLeft          bool    `json:"clipLeft"`
	ClipRight         bool    `json:"clipRight"`
}

// silentSnapshot is what a freshly reset meter reports.
func silentSnapshot() MeteringSnapshot {
	return MeteringSnapshot{
		RMSLeft: DBMin, RMSRight: DBMin,
		PeakLeft: DBMin, PeakRight: DBMin,
		LivePeakLeft: DBMin, LivePeakRight: DBMin,
		TruePeakLeft: DBMin, TruePeakRight: DBMin,
		LUFSMomentary: LUFSMin, LUFSShortTerm: LUFSMin, LUFSIntegrated: LUFSMin,
		StereoCorrelation: 1,
	}
}

// peakHold implements the hold/decay state machine for one side.
// The held value never drops below the live instantaneous peak.
type peakHold struct {
	heldDB   float64
	lastRise time.Time
}

func (p *peakHold) update(liveDB float64, now time.Time, hold time.Duration, decay float64) float64 {
	if liveDB >= p.heldDB || p.lastRise.IsZero() {
		p.heldDB = liveDB
		p.lastRise = now
		return p.heldDB
	}
	if now.Sub(p.lastRise) >= hold {
		p.heldDB -= decay
		if p.heldDB < liveDB {
			p.heldDB = liveDB
		}
	}
	return p.heldDB
}

func (p *peakHold) reset() {
	p.heldDB = DBMin
	p.lastRise = time.Time{}
}

// momentaryEntry is one tick's momentary loudness with its tick time,
// kept so short-term and integrated averages work at any tick rate.
type momentaryEntry struct {
	lufs  float64
	power float64
	at    time.Time
}

// maxLoudnessHistory bounds the integrated-loudness memory; older
// momentary samples roll off.
const maxLoudnessHistory = 300

// Meter is the metering engine for one stereo pair. It is owned by a
// single audio callback: Process is called once per tick with the live
// buffers, Snapshot returns the latest immutable measurement. No locking
// is needed as long as that ownership holds. Process avoids I/O and
// reuses internal scratch storage to stay allocation-light.
type Meter struct {
	cfg  MeterConfig
	kw   *KWeighting
	snap MeteringSnapshot

	holdL, holdR peakHold
	clipL, clipR time.Time

	history    []momentaryEntry
	scratchL   []float64
	scratchR   []float64
	hasClipped struct{ left, right bool }
}

// NewMeter constructs a meter with the given tuning.
func NewMeter(cfg MeterConfig) *Meter {
	m := &Meter{cfg: cfg.withDefaults(), kw: NewKWeighting(2)}
	m.kw.Enabled = m.cfg.Weighting
	m.holdL.reset()
	m.holdR.reset()
	m.snap = silentSnapshot()
	return m
}

// Process consumes one tick's worth of live samples and refreshes the
// snapshot. rate is the stream sample rate; now is the tick time.
func (m *Meter) Process(left, right []float64, rate int, now time.Time) {
	rmsL := LinearToDB(RMS(left))
	rmsR := LinearToDB(RMS(right))
	livePeakL := Peak(left)
	livePeakR := Peak(right)
	peakLDB := LinearToDB(livePeakL)
	peakRDB := LinearToDB(livePeakR)

	s := MeteringSnapshot{
		RMSLeft:           rmsL,
		RMSRight:          rmsR,
		LivePeakLeft:      peakLDB,
		LivePeakRight:     peakRDB,
		TruePeakLeft:      LinearToDB(TruePeak(left)),
		TruePeakRight:     LinearToDB(TruePeak(right)),
		StereoCorrelation: StereoCorrelation(left, right),
	}

	// PeakLeft/Right carry the hold/decay ballistics; the instantaneous
	// tick peak is reported separately as LivePeakLeft/Right.
	s.PeakLeft = m.holdL.update(peakLDB, now, m.cfg.PeakHoldTime, m.cfg.PeakDecayRate)
	s.PeakRight = m.holdR.update(peakRDB, now, m.cfg.PeakHoldTime, m.cfg.PeakDecayRate)

	// Clip latch: trips at 0 dBFS, stays up for the latch duration after
	// the most recent clipping event, then auto-clears.
	if livePeakL >= 1 {
		m.clipL = now
	}
	if livePeakR >= 1 {
		m.clipR = now
	}
	s.ClipLeft = !m.clipL.IsZero() && now.Sub(m.clipL) < m.cfg.ClipLatchDuration
	s.ClipRight = !m.clipR.IsZero() && now.Sub(m.clipR) < m.cfg.ClipLatchDuration

	s.LUFSMomentary = m.momentary(left, right, rate)
	m.pushHistory(momentaryEntry{lufs: s.LUFSMomentary, power: math.Pow(10, (s.LUFSMomentary-lufsOffset)/10), at: now})
	s.LUFSShortTerm = m.shortTerm(now)
	s.LUFSIntegrated = m.integrated()

	s.DynamicRange = math.Max(s.PeakLeft, s.PeakRight) - math.Min(s.RMSLeft, s.RMSRight)
	if s.DynamicRange < 0 {
		s.DynamicRange = 0
	}

	m.snap = s
}

// momentary computes the K-weighted loudness of the current tick buffers
// using reusable scratch copies so the caller's audio is untouched.
func (m *Meter) momentary(left, right []float64, rate int) float64 {
	m.scratchL = append(m.scratchL[:0], left...)
	m.scratchR = append(m.scratchR[:0], right...)
	m.kw.Enabled = m.cfg.Weighting
	m.kw.Apply(0, m.scratchL, rate)
	m.kw.Apply(1, m.scratchR, rate)
	return loudnessFromMeanSquare(meanSquare(m.scratchL) + meanSquare(m.scratchR))
}

func (m *Meter) pushHistory(e momentaryEntry) {
	m.history = append(m.history, e)
	if len(m.history) > maxLoudnessHistory {
		m.history = m.history[len(m.history)-maxLoudnessHistory:]
	}
}

// shortTerm averages the momentary history inside the short-term window.
func (m *Meter) shortTerm(now time.Time) float64 {
	var power float64
	var count int
	for i := len(m.history) - 1; i >= 0; i-- {
		if now.Sub(m.history[i].at) > m.cfg.ShortTermWindow {
			break
		}
		power += m.history[i].power
		count++
	}
	if count == 0 {
		return LUFSMin
	}
	return loudnessFromMeanSquare(power / float64(count))
}

// integrated averages all retained momentary samples above the silence
// gate. The bounded history keeps memory flat for long sessions.
func (m *Meter) integrated() float64 {
	var power float64
	var count int
	for _, e := range m.history {
		if e.lufs > LUFSGate {
			power += e.power
			count++
		}
	}
	if count == 0 {
		return LUFSMin
	}
	return loudnessFromMeanSquare(power / float64(count))
}

// Snapshot returns the latest measurement.
func (m *Meter) Snapshot() MeteringSnapshot {
	return m.snap
}

// Reset clears hold, latch, and loudness history back to floor values.
// Used when the transport stops or the output is rerouted.
func (m *Meter) Reset() {
	m.holdL.reset()
	m.holdR.reset()
	m.clipL = time.Time{}
	m.clipR = time.Time{}
	m.history = m.history[:0]
	m.kw.Reset()
	m.snap = silentSnapshot()
}

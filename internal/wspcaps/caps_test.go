package wspcaps

import (
	"testing"

	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/octet"
)

func testLimits() Limits {
	return Limits{
		MaxClientSDU:    30000,
		MaxServerSDU:    30000,
		ProtocolOptions: 0x00,
		MaxMORMethod:    1,
		MaxMORPush:      1,
	}
}

func buildTriple(id byte, payload []byte) []byte {
	tmp := octet.WriteU8(nil, id)
	tmp = octet.AppendOctets(tmp, payload)
	out := octet.WriteUintvar(nil, uint64(len(tmp)))
	return octet.AppendOctets(out, tmp)
}

func TestNegotiateClientSDUTimeportQuirk(t *testing.T) {
	log := zap.NewNop().Sugar()
	caps := buildTriple(idClientSDUSize, octet.WriteUintvar(nil, 3))

	set := Default()
	if err := Negotiate(caps, testLimits(), &set, log); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if set.ClientSDUSize != 1350 {
		t.Errorf("client SDU size = %d, want 1350 (Motorola Timeport rewrite)", set.ClientSDUSize)
	}
}

func TestNegotiateClientSDUWithinLimitAccepted(t *testing.T) {
	log := zap.NewNop().Sugar()
	caps := buildTriple(idClientSDUSize, octet.WriteUintvar(nil, 1204))

	set := Default()
	if err := Negotiate(caps, testLimits(), &set, log); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if set.ClientSDUSize != 1204 {
		t.Errorf("client SDU size = %d, want 1204", set.ClientSDUSize)
	}
	if set.SetCaps&ClientSDUSet == 0 {
		t.Error("expected ClientSDUSet to be marked negotiated")
	}
}

func TestNegotiateCapabilityOnlyOnce(t *testing.T) {
	log := zap.NewNop().Sugar()
	first := buildTriple(idClientSDUSize, octet.WriteUintvar(nil, 1204))
	second := buildTriple(idClientSDUSize, octet.WriteUintvar(nil, 9999))
	caps := append(first, second...)

	set := Default()
	if err := Negotiate(caps, testLimits(), &set, log); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if set.ClientSDUSize != 1204 {
		t.Errorf("second occurrence of a capability must be discarded: got %d, want 1204", set.ClientSDUSize)
	}
}

func TestNegotiateOverLimitIgnored(t *testing.T) {
	log := zap.NewNop().Sugar()
	limits := testLimits()
	limits.MaxClientSDU = 1000
	caps := buildTriple(idClientSDUSize, octet.WriteUintvar(nil, 5000))

	set := Default()
	if err := Negotiate(caps, limits, &set, log); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if set.SetCaps&ClientSDUSet != 0 {
		t.Error("over-limit capability must not be marked negotiated")
	}
	if set.ClientSDUSize != Default().ClientSDUSize {
		t.Errorf("over-limit capability must not change the default: got %d", set.ClientSDUSize)
	}
}

func TestEncodeEmitsClientSDUAsServerSDUIdentifier(t *testing.T) {
	set := Default()
	set.ClientSDUSize = 1204
	set.SetCaps = ClientSDUSet

	encoded := Encode(set)

	triLen, off, err := octet.ReadUintvar(encoded, 0)
	if err != nil {
		t.Fatalf("ReadUintvar(length) error = %v", err)
	}
	id, off, err := octet.ReadU8(encoded, off)
	if err != nil {
		t.Fatalf("ReadU8(id) error = %v", err)
	}
	if id != idServerSDUSize {
		t.Errorf("client SDU must be echoed under identifier 0x%02x (server SDU size), got 0x%02x", idServerSDUSize, id)
	}
	v, valOff, err := octet.ReadUintvar(encoded, off)
	if err != nil {
		t.Fatalf("ReadUintvar(value) error = %v", err)
	}
	if v != 1204 {
		t.Errorf("echoed value = %d, want 1204", v)
	}
	idAndPayloadLen := valOff - (off - 1) // identifier byte + value bytes
	if int(triLen) != idAndPayloadLen {
		t.Errorf("triple length field = %d, want %d (identifier + payload bytes)", triLen, idAndPayloadLen)
	}
}

func TestEncodeEmptyWhenNothingNegotiated(t *testing.T) {
	if got := Encode(Default()); len(got) != 0 {
		t.Errorf("Encode() of a default (unnegotiated) set = % x, want empty", got)
	}
}

type countingRecorder struct{ clamps int }

func (r *countingRecorder) IncCapabilityClamp() { r.clamps++ }

func TestNegotiateWithMetricsRecordsClamp(t *testing.T) {
	log := zap.NewNop().Sugar()
	limits := testLimits()
	limits.MaxClientSDU = 1000
	caps := buildTriple(idClientSDUSize, octet.WriteUintvar(nil, 5000))

	set := Default()
	rec := &countingRecorder{}
	if err := NegotiateWithMetrics(caps, limits, &set, log, rec); err != nil {
		t.Fatalf("NegotiateWithMetrics() error = %v", err)
	}
	if rec.clamps != 1 {
		t.Errorf("clamp count = %d, want 1", rec.clamps)
	}
}

func TestNegotiateWithMetricsNilRecorderIsSafe(t *testing.T) {
	log := zap.NewNop().Sugar()
	limits := testLimits()
	limits.MaxMORMethod = 1
	caps := buildTriple(idMethodMOR, []byte{7})

	set := Default()
	if err := NegotiateWithMetrics(caps, limits, &set, log, nil); err != nil {
		t.Fatalf("NegotiateWithMetrics() error = %v", err)
	}
	if set.MORMethod != 1 {
		t.Errorf("MOR method = %d, want clamped to 1", set.MORMethod)
	}
}

func TestNegotiateUnknownCapabilityIgnored(t *testing.T) {
	log := zap.NewNop().Sugar()
	caps := buildTriple(0x7F, []byte{0x01})

	set := Default()
	if err := Negotiate(caps, testLimits(), &set, log); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if set.SetCaps != 0 {
		t.Errorf("unknown capability must not set any bit, got %#b", set.SetCaps)
	}
}

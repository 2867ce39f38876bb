// Package wspcaps negotiates the WSP capability block carried in a
// Connect PDU: it clamps each client-proposed value against the
// server's ceilings and records which capabilities were actually
// negotiated so the ConnectReply only echoes those.
package wspcaps

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mellowdrifter/wspd/internal/octet"
)

// Capability identifiers, §4.3.
const (
	idClientSDUSize   = 0x00
	idServerSDUSize   = 0x01
	idProtocolOptions = 0x02
	idMethodMOR       = 0x03
	idPushMOR         = 0x04
	idExtendedMethods = 0x05
	idHeaderCodePages = 0x06
	idAliases         = 0x07
)

// motorolaTimeportSDU is the Motorola Timeport / phone.com interop
// value that gets rewritten to motorolaTimeportRewrite (§4.3).
const (
	motorolaTimeportSDU     = 3
	motorolaTimeportRewrite = 1350
)

// Mask tracks which fields of Set were actually negotiated by the
// client, per §3 ("a companion bitmask set_caps").
type Mask uint8

const (
	ClientSDUSet Mask = 1 << iota
	ServerSDUSet
	ProtocolOptionsSet
	MORMethodSet
	MORPushSet
)

func (m Mask) has(bit Mask) bool { return m&bit != 0 }

// ClampRecorder is an optional observability hook Negotiate reports
// into whenever a client-proposed value is clamped or dropped for
// exceeding a server ceiling. A nil ClampRecorder is fine to pass.
type ClampRecorder interface {
	IncCapabilityClamp()
}

func recordClamp(rec ClampRecorder) {
	if rec != nil {
		rec.IncCapabilityClamp()
	}
}

// Set is the negotiable capability record, §3. Defaults match the
// values a session starts with before any Connect is processed.
type Set struct {
	ClientSDUSize   uint64
	ServerSDUSize   uint64
	ProtocolOptions uint8
	MORMethod       uint8
	MORPush         uint8
	SetCaps         Mask
}

// Default returns the capability set a fresh session holds before
// negotiation (§3: client_sdu_size=1400, server_sdu_size=1400,
// mor_method=1, mor_push=1).
func Default() Set {
	return Set{
		ClientSDUSize: 1400,
		ServerSDUSize: 1400,
		MORMethod:     1,
		MORPush:       1,
	}
}

// Limits are the server's negotiation ceilings. A zero MaxClientSDU or
// MaxServerSDU means "unbounded", matching the source's
// "if (WSP_MAX_CLIENT_SDU && ...)" guard. The MOR ceilings have no such
// exception: a zero MaxMORMethod or MaxMORPush clamps the proposed value
// to 0.
type Limits struct {
	MaxClientSDU    uint64
	MaxServerSDU    uint64
	ProtocolOptions uint8 // the set of options this server actually supports
	MaxMORMethod    uint8
	MaxMORPush      uint8
}

// Negotiate parses caps as a sequence of (length, identifier, payload)
// triples and clamps each recognized capability against limits. It
// never fails on an unrecognized or malformed-but-bounded capability —
// those are logged and skipped, per §4.3/§7 ("capability clamp ...
// never fatal"). It only returns an error when a length field is
// truncated, is zero, or would run past the end of the buffer, since
// that corrupts the ability to locate subsequent triples.
func Negotiate(caps []byte, limits Limits, set *Set, log *zap.SugaredLogger) error {
	return NegotiateWithMetrics(caps, limits, set, log, nil)
}

// NegotiateWithMetrics is Negotiate plus an optional ClampRecorder,
// incremented whenever a client-proposed value is dropped or clamped
// against a server ceiling.
func NegotiateWithMetrics(caps []byte, limits Limits, set *Set, log *zap.SugaredLogger, rec ClampRecorder) error {
	off := 0
	for off < len(caps) {
		triLen, next, err := octet.ReadUintvar(caps, off)
		if err != nil {
			return fmt.Errorf("wspcaps: capability length: %w", err)
		}
		triEnd := next + int(triLen)
		if triLen == 0 || triEnd > len(caps) {
			return fmt.Errorf("wspcaps: capability triple overruns buffer")
		}
		id, idOff, err := octet.ReadU8(caps, next)
		if err != nil {
			return fmt.Errorf("wspcaps: capability identifier: %w", err)
		}
		payload := caps[idOff:triEnd]

		switch id {
		case idClientSDUSize:
			negotiateClientSDU(payload, limits, set, log, rec)
		case idServerSDUSize:
			negotiateServerSDU(payload, limits, set, log, rec)
		case idProtocolOptions:
			negotiateProtocolOptions(limits, set, log)
		case idMethodMOR:
			negotiateMOR(payload, limits.MaxMORMethod, MORMethodSet, &set.MORMethod, set, log, rec, "method")
		case idPushMOR:
			negotiateMOR(payload, limits.MaxMORPush, MORPushSet, &set.MORPush, set, log, rec, "push")
		case idExtendedMethods, idHeaderCodePages, idAliases:
			log.Debugf("wsp: capability 0x%02x parsed and ignored (unsupported in this gateway)", id)
		default:
			log.Debugf("wsp: unknown capability 0x%02x ignored", id)
		}

		off = triEnd
	}
	return nil
}

func negotiateClientSDU(payload []byte, limits Limits, set *Set, log *zap.SugaredLogger, rec ClampRecorder) {
	if set.SetCaps.has(ClientSDUSet) {
		return
	}
	v, _, err := octet.ReadUintvar(payload, 0)
	if err != nil {
		log.Warnf("wsp: problem reading client SDU size capability: %v", err)
		return
	}
	if limits.MaxClientSDU != 0 && v > limits.MaxClientSDU {
		log.Debugf("wsp: client requested client SDU size %d larger than max %d, ignored", v, limits.MaxClientSDU)
		recordClamp(rec)
		return
	}
	if v == motorolaTimeportSDU {
		log.Debugf("wsp: client SDU size %d rewritten to %d (Motorola Timeport/phone.com interop)", v, motorolaTimeportRewrite)
		v = motorolaTimeportRewrite
	}
	set.ClientSDUSize = v
	set.SetCaps |= ClientSDUSet
}

func negotiateServerSDU(payload []byte, limits Limits, set *Set, log *zap.SugaredLogger, rec ClampRecorder) {
	if set.SetCaps.has(ServerSDUSet) {
		return
	}
	v, _, err := octet.ReadUintvar(payload, 0)
	if err != nil {
		log.Warnf("wsp: problem reading server SDU size capability: %v", err)
		return
	}
	if limits.MaxServerSDU != 0 && v > limits.MaxServerSDU {
		log.Debugf("wsp: client requested server SDU size %d larger than max %d, ignored", v, limits.MaxServerSDU)
		recordClamp(rec)
		return
	}
	set.ServerSDUSize = v
	set.SetCaps |= ServerSDUSet
}

func negotiateProtocolOptions(limits Limits, set *Set, log *zap.SugaredLogger) {
	if set.SetCaps.has(ProtocolOptionsSet) {
		return
	}
	// The server always answers with the options it actually supports,
	// regardless of what the client proposed (§4.3).
	log.Debugf("wsp: protocol options overridden to server-supported set 0x%02x", limits.ProtocolOptions)
	set.ProtocolOptions = limits.ProtocolOptions
	set.SetCaps |= ProtocolOptionsSet
}

func negotiateMOR(payload []byte, max uint8, bit Mask, field *uint8, set *Set, log *zap.SugaredLogger, rec ClampRecorder, kind string) {
	if set.SetCaps.has(bit) {
		return
	}
	v, _, err := octet.ReadU8(payload, 0)
	if err != nil {
		log.Warnf("wsp: problem reading %s MOR capability: %v", kind, err)
		return
	}
	if v > max {
		log.Debugf("wsp: client requested %s MOR %d larger than max %d, clamped", kind, v, max)
		recordClamp(rec)
		v = max
	}
	*field = v
	set.SetCaps |= bit
}

// Encode emits the negotiated reply capability block. Only capabilities
// actually negotiated are echoed, and only in this order: client SDU,
// server SDU, method MOR, push MOR.
//
// Both client and server SDU size are emitted under the server-SDU-size
// identifier (0x01) — this is the literal wire behavior of the Kannel
// source this core was distilled from and is
// preserved for wire compatibility with existing clients that tolerate
// it, not a bug introduced here. Protocol options, though always
// negotiated, are never echoed in the reply — the source never encodes
// them either.
func Encode(set Set) []byte {
	var caps []byte
	if set.SetCaps.has(ClientSDUSet) {
		caps = appendTriple(caps, idServerSDUSize, func(tmp []byte) []byte {
			return octet.WriteUintvar(tmp, set.ClientSDUSize)
		})
	}
	if set.SetCaps.has(ServerSDUSet) {
		caps = appendTriple(caps, idServerSDUSize, func(tmp []byte) []byte {
			return octet.WriteUintvar(tmp, set.ServerSDUSize)
		})
	}
	if set.SetCaps.has(MORMethodSet) {
		caps = appendTriple(caps, idMethodMOR, func(tmp []byte) []byte {
			return octet.WriteU8(tmp, set.MORMethod)
		})
	}
	if set.SetCaps.has(MORPushSet) {
		caps = appendTriple(caps, idPushMOR, func(tmp []byte) []byte {
			return octet.WriteU8(tmp, set.MORPush)
		})
	}
	return caps
}

func appendTriple(caps []byte, id byte, payload func([]byte) []byte) []byte {
	tmp := octet.WriteU8(nil, id)
	tmp = payload(tmp)
	caps = octet.WriteUintvar(caps, uint64(len(tmp)))
	caps = octet.AppendOctets(caps, tmp)
	return caps
}

package nfc

import (
	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/pion/logging"
)

// Trace wraps an Exchanger and logs each command header, data length and
// response status at trace level. Command and response data are not
// logged since they carry key material.
type Trace struct {
	next apdu.Exchanger
	log  logging.LeveledLogger
	seq  int
}

// NewTrace wraps next. With a nil factory the wrapper only forwards.
func NewTrace(next apdu.Exchanger, loggerFactory logging.LoggerFactory) *Trace {
	t := &Trace{next: next}
	if loggerFactory != nil {
		t.log = loggerFactory.NewLogger("nfc-trace")
	}
	return t
}

// Exchange implements apdu.Exchanger.
func (t *Trace) Exchange(cmd []byte) ([]byte, error) {
	t.seq++
	if t.log != nil {
		if h, err := apdu.ParseCommand(cmd); err == nil {
			t.log.Tracef("#%d > %02X %02X %02X %02X Lc=%d Ne=%d", t.seq, h.Cla, h.Ins, h.P1, h.P2, len(h.Data), h.Ne)
		} else {
			t.log.Tracef("#%d > %d octets (unparsed)", t.seq, len(cmd))
		}
	}

	resp, err := t.next.Exchange(cmd)
	if t.log != nil {
		switch data, sw, splitErr := apdu.Split(resp); {
		case err != nil:
			t.log.Tracef("#%d < error: %v", t.seq, err)
		case splitErr != nil:
			t.log.Tracef("#%d < %d octets", t.seq, len(resp))
		default:
			t.log.Tracef("#%d < %d octets, sw=%s", t.seq, len(data), sw)
		}
	}
	return resp, err
}

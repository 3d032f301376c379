package encoding

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yesC48/CyberIO/internal/sim/model"
)

func mustEncode(t *testing.T, r Record) []byte {
	t.Helper()
	b, err := EncodeRecord(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func TestRecord_RoundTrip(t *testing.T) {
	in := Record{
		Node: &NodeRecord{
			Links: [4]model.Pos{model.Pack(4, 1), model.PosEmpty, model.PosEmpty, model.Pack(1, 0)},
			Pending: []PendingRecord{{
				Target:   model.Pack(7, 1),
				Item:     "copper",
				Progress: 0.75,
				Route:    3,
				Hops:     []model.Pos{model.Pack(4, 1), model.Pack(7, 1)},
			}},
		},
		Distributor: &DistributorRecord{
			Senders:  []model.Pos{model.Pack(0, 0), model.Pack(2, 2)},
			DisIndex: 3,
		},
	}
	b := mustEncode(t, in)
	if b[0] != RecordRevision {
		t.Fatalf("revision byte = %d", b[0])
	}
	out, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestRecord_SenderOrderKept(t *testing.T) {
	recv := []model.Pos{model.Pack(9, 9), model.Pack(1, 1), model.Pack(5, 5)}
	out, err := DecodeRecord(mustEncode(t, Record{Sender: &SenderRecord{Receivers: recv}}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Node != nil || out.Distributor != nil {
		t.Fatalf("unexpected sections: %+v", out)
	}
	if !reflect.DeepEqual(out.Sender.Receivers, recv) {
		t.Fatalf("receivers = %v", out.Sender.Receivers)
	}
}

func TestRecord_Rejects(t *testing.T) {
	if _, err := DecodeRecord([]byte{RecordRevision + 1, 0}); err == nil {
		t.Fatalf("expected revision error")
	}
	b := mustEncode(t, Record{Sender: &SenderRecord{Receivers: []model.Pos{model.Pack(1, 1)}}})
	if _, err := DecodeRecord(b[:len(b)-2]); err == nil {
		t.Fatalf("expected truncation error")
	}
	if _, err := DecodeRecord(append(b, 0)); err == nil {
		t.Fatalf("expected trailing bytes error")
	}
	r, err := DecodeRecord(nil)
	if err != nil || !r.Empty() {
		t.Fatalf("empty record: %+v %v", r, err)
	}
}

func TestRecord_RevisionZeroHasNoPending(t *testing.T) {
	b := mustEncode(t, Record{Node: &NodeRecord{Links: [4]model.Pos{model.PosEmpty, model.PosEmpty, model.PosEmpty, model.PosEmpty}}})
	// drop the pending count and mark as revision 0
	legacy := append([]byte{0}, b[1:len(b)-4]...)
	r, err := DecodeRecord(legacy)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Node == nil || r.Node.Links[0] != model.PosEmpty || len(r.Node.Pending) != 0 {
		t.Fatalf("legacy node: %+v", r.Node)
	}
}

func TestRecord_RejectsOversizedItem(t *testing.T) {
	long := strings.Repeat("x", MaxStringLen+1)
	r := Record{Node: &NodeRecord{
		Links:   [4]model.Pos{model.PosEmpty, model.PosEmpty, model.PosEmpty, model.PosEmpty},
		Pending: []PendingRecord{{Target: model.Pack(1, 1), Item: long}},
	}}
	if _, err := EncodeRecord(r); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("err = %v, want ErrStringTooLong", err)
	}

	r.Node.Pending[0].Item = long[:MaxStringLen]
	out, err := DecodeRecord(mustEncode(t, r))
	if err != nil || out.Node.Pending[0].Item != r.Node.Pending[0].Item {
		t.Fatalf("max length item did not round trip: %v", err)
	}
}

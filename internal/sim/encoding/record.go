package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/yesC48/CyberIO/internal/sim/model"
)

// RecordRevision is written as the first byte of every building record.
// Revision 0 records predate in-flight items and carry no pending list.
const RecordRevision byte = 1

const (
	roleNode        byte = 1 << 0
	roleSender      byte = 1 << 1
	roleDistributor byte = 1 << 2
)

const maxListLen = 1 << 16

// MaxStringLen is the longest item name a record can hold.
const MaxStringLen = math.MaxUint16

var ErrStringTooLong = errors.New("record: string too long")

type PendingRecord struct {
	Target   model.Pos
	Item     string
	Progress float64
	Route    uint32
	Hops     []model.Pos
}

type NodeRecord struct {
	Links   [4]model.Pos
	Pending []PendingRecord
}

type SenderRecord struct {
	Receivers []model.Pos
}

type DistributorRecord struct {
	Senders  []model.Pos
	DisIndex uint8
}

// Record is the persisted connection state of one building. Nil sections
// are absent from the encoding.
type Record struct {
	Node        *NodeRecord
	Sender      *SenderRecord
	Distributor *DistributorRecord
}

func (r Record) Empty() bool {
	return r.Node == nil && r.Sender == nil && r.Distributor == nil
}

func EncodeRecord(r Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(RecordRevision)

	var roles byte
	if r.Node != nil {
		roles |= roleNode
	}
	if r.Sender != nil {
		roles |= roleSender
	}
	if r.Distributor != nil {
		roles |= roleDistributor
	}
	buf.WriteByte(roles)

	if n := r.Node; n != nil {
		for _, p := range n.Links {
			putInt32(&buf, int32(p))
		}
		putInt32(&buf, int32(len(n.Pending)))
		for _, pd := range n.Pending {
			putInt32(&buf, int32(pd.Target))
			if err := putString(&buf, pd.Item); err != nil {
				return nil, err
			}
			putUint64(&buf, math.Float64bits(pd.Progress))
			putUint32(&buf, pd.Route)
			putPositions(&buf, pd.Hops)
		}
	}
	if s := r.Sender; s != nil {
		putPositions(&buf, s.Receivers)
	}
	if d := r.Distributor; d != nil {
		putPositions(&buf, d.Senders)
		buf.WriteByte(d.DisIndex)
	}
	return buf.Bytes(), nil
}

func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if len(b) == 0 {
		return r, nil
	}
	rd := bytes.NewReader(b)
	rev, _ := rd.ReadByte()
	if rev > RecordRevision {
		return r, fmt.Errorf("record: unsupported revision %d", rev)
	}
	roles, err := rd.ReadByte()
	if err != nil {
		return r, fmt.Errorf("record: roles: %w", err)
	}

	if roles&roleNode != 0 {
		n := &NodeRecord{}
		for i := range n.Links {
			v, err := getInt32(rd)
			if err != nil {
				return r, fmt.Errorf("record: link %d: %w", i, err)
			}
			n.Links[i] = model.Pos(v)
		}
		if rev >= 1 {
			cnt, err := getLen(rd)
			if err != nil {
				return r, fmt.Errorf("record: pending: %w", err)
			}
			for i := 0; i < cnt; i++ {
				pd, err := getPending(rd)
				if err != nil {
					return r, fmt.Errorf("record: pending %d: %w", i, err)
				}
				n.Pending = append(n.Pending, pd)
			}
		}
		r.Node = n
	}
	if roles&roleSender != 0 {
		ps, err := getPositions(rd)
		if err != nil {
			return r, fmt.Errorf("record: receivers: %w", err)
		}
		r.Sender = &SenderRecord{Receivers: ps}
	}
	if roles&roleDistributor != 0 {
		ps, err := getPositions(rd)
		if err != nil {
			return r, fmt.Errorf("record: senders: %w", err)
		}
		idx, err := rd.ReadByte()
		if err != nil {
			return r, fmt.Errorf("record: dis index: %w", err)
		}
		r.Distributor = &DistributorRecord{Senders: ps, DisIndex: idx}
	}
	if rd.Len() != 0 {
		return r, fmt.Errorf("record: %d trailing bytes", rd.Len())
	}
	return r, nil
}

func getPending(rd *bytes.Reader) (PendingRecord, error) {
	var pd PendingRecord
	t, err := getInt32(rd)
	if err != nil {
		return pd, err
	}
	pd.Target = model.Pos(t)
	if pd.Item, err = getString(rd); err != nil {
		return pd, err
	}
	bits, err := getUint64(rd)
	if err != nil {
		return pd, err
	}
	pd.Progress = math.Float64frombits(bits)
	if pd.Route, err = getUint32(rd); err != nil {
		return pd, err
	}
	pd.Hops, err = getPositions(rd)
	return pd, err
}

func putInt32(buf *bytes.Buffer, v int32) { putUint32(buf, uint32(v)) }

func putUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func putString(buf *bytes.Buffer, s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(len(s)))
	buf.Write(tmp[:])
	buf.WriteString(s)
	return nil
}

func putPositions(buf *bytes.Buffer, ps []model.Pos) {
	putInt32(buf, int32(len(ps)))
	for _, p := range ps {
		putInt32(buf, int32(p))
	}
}

func getUint32(rd *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(rd, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func getInt32(rd *bytes.Reader) (int32, error) {
	v, err := getUint32(rd)
	return int32(v), err
}

func getUint64(rd *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(rd, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func getString(rd *bytes.Reader) (string, error) {
	var tmp [2]byte
	if _, err := io.ReadFull(rd, tmp[:]); err != nil {
		return "", err
	}
	b := make([]byte, binary.BigEndian.Uint16(tmp[:]))
	if _, err := io.ReadFull(rd, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func getLen(rd *bytes.Reader) (int, error) {
	n, err := getInt32(rd)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxListLen {
		return 0, errors.New("list length out of range")
	}
	return int(n), nil
}

func getPositions(rd *bytes.Reader) ([]model.Pos, error) {
	n, err := getLen(rd)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]model.Pos, 0, n)
	for i := 0; i < n; i++ {
		v, err := getInt32(rd)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Pos(v))
	}
	return out, nil
}

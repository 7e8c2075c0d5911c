package wire

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/marmos91/ferry/pkg/transfer"
)

// FilePartUpload is queue.FilePartUpload, the upload queue message.
type FilePartUpload struct {
	ID         string // task id, "_id" on the wire
	Name       string
	Offset     string
	Size       string
	IsLastPart bool
}

func (m *FilePartUpload) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Name)
	b = appendString(b, 3, m.Offset)
	b = appendString(b, 4, m.Size)
	b = appendBool(b, 5, m.IsLastPart)
	return b, nil
}

func (m *FilePartUpload) Unmarshal(b []byte) error {
	*m = FilePartUpload{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Name)
		case 3:
			return consumeString(typ, b, &m.Offset)
		case 4:
			return consumeString(typ, b, &m.Size)
		case 5:
			return consumeBool(typ, b, &m.IsLastPart)
		}
		return 0, nil
	})
}

// FilePartDelete is queue.FilePartDelete, the delete queue message.
type FilePartDelete struct {
	ID     string // part id
	Owner  string
	Name   string
	Offset string
	Size   string
}

func (m *FilePartDelete) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Owner)
	b = appendString(b, 3, m.Name)
	b = appendString(b, 4, m.Offset)
	b = appendString(b, 5, m.Size)
	return b, nil
}

func (m *FilePartDelete) Unmarshal(b []byte) error {
	*m = FilePartDelete{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Owner)
		case 3:
			return consumeString(typ, b, &m.Name)
		case 4:
			return consumeString(typ, b, &m.Offset)
		case 5:
			return consumeString(typ, b, &m.Size)
		}
		return 0, nil
	})
}

// ParseUint parses a string-encoded integer. The empty string is zero, which
// is what proto3 producers send for an unset field.
func ParseUint(field, s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an unsigned integer", transfer.ErrMalformedMessage, field, s)
	}
	return v, nil
}

// FormatUint is the inverse of ParseUint.
func FormatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// DecodeTransferTask decodes an upload queue message body.
func DecodeTransferTask(body []byte) (transfer.TransferTask, error) {
	var m FilePartUpload
	if err := m.Unmarshal(body); err != nil {
		return transfer.TransferTask{}, fmt.Errorf("%w: %v", transfer.ErrMalformedMessage, err)
	}
	offset, err := ParseUint("offset", m.Offset)
	if err != nil {
		return transfer.TransferTask{}, err
	}
	size, err := ParseUint("size", m.Size)
	if err != nil {
		return transfer.TransferTask{}, err
	}
	return transfer.TransferTask{
		TaskID:     m.ID,
		FileName:   m.Name,
		Offset:     offset,
		Size:       size,
		IsLastPart: m.IsLastPart,
	}, nil
}

// EncodeTransferTask builds an upload queue message body.
func EncodeTransferTask(t transfer.TransferTask) ([]byte, error) {
	m := FilePartUpload{
		ID:         t.TaskID,
		Name:       t.FileName,
		Offset:     FormatUint(t.Offset),
		Size:       FormatUint(t.Size),
		IsLastPart: t.IsLastPart,
	}
	return m.Marshal()
}

// DecodeDeletionTask decodes a delete queue message body.
func DecodeDeletionTask(body []byte) (transfer.DeletionTask, error) {
	var m FilePartDelete
	if err := m.Unmarshal(body); err != nil {
		return transfer.DeletionTask{}, fmt.Errorf("%w: %v", transfer.ErrMalformedMessage, err)
	}
	offset, err := ParseUint("offset", m.Offset)
	if err != nil {
		return transfer.DeletionTask{}, err
	}
	size, err := ParseUint("size", m.Size)
	if err != nil {
		return transfer.DeletionTask{}, err
	}
	return transfer.DeletionTask{
		PartID:      m.ID,
		OwnerID:     m.Owner,
		LogicalName: m.Name,
		Offset:      offset,
		Size:        size,
	}, nil
}

// EncodeDeletionTask builds a delete queue message body.
func EncodeDeletionTask(t transfer.DeletionTask) ([]byte, error) {
	m := FilePartDelete{
		ID:     t.PartID,
		Owner:  t.OwnerID,
		Name:   t.LogicalName,
		Offset: FormatUint(t.Offset),
		Size:   FormatUint(t.Size),
	}
	return m.Marshal()
}

package wire

import "google.golang.org/protobuf/encoding/protowire"

// SizeRequest is account.SizeRequest, the PickBySize argument.
type SizeRequest struct {
	Value string
}

func (m *SizeRequest) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.Value), nil
}

func (m *SizeRequest) Unmarshal(b []byte) error {
	*m = SizeRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Value)
		}
		return 0, nil
	})
}

// Account is account.Account.
type Account struct {
	ID   string
	Free string
}

func (m *Account) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Free)
	return b, nil
}

func (m *Account) Unmarshal(b []byte) error {
	*m = Account{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Free)
		}
		return 0, nil
	})
}

// IncreaseSizeRequest is account.IncreaseSizeRequest, the capacity release.
type IncreaseSizeRequest struct {
	ID   string
	Size string
}

func (m *IncreaseSizeRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Size)
	return b, nil
}

func (m *IncreaseSizeRequest) Unmarshal(b []byte) error {
	*m = IncreaseSizeRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Size)
		}
		return 0, nil
	})
}

// Empty is account.Empty.
type Empty struct{}

func (m *Empty) Marshal() ([]byte, error) { return nil, nil }

func (m *Empty) Unmarshal(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
}

// UploadRequest is account.UploadRequestDTO, one chunk of an Upload stream.
type UploadRequest struct {
	Buffer []byte
}

func (m *UploadRequest) Marshal() ([]byte, error) {
	return appendBytes(nil, 1, m.Buffer), nil
}

func (m *UploadRequest) Unmarshal(b []byte) error {
	m.Buffer = m.Buffer[:0]
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBytes(typ, b, &m.Buffer)
		}
		return 0, nil
	})
}

// UploadResponse is account.UploadResponse: the part id and its canonical
// name at the destination.
type UploadResponse struct {
	Value string
	Name  string
}

func (m *UploadResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Value)
	b = appendString(b, 2, m.Name)
	return b, nil
}

func (m *UploadResponse) Unmarshal(b []byte) error {
	*m = UploadResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Value)
		case 2:
			return consumeString(typ, b, &m.Name)
		}
		return 0, nil
	})
}

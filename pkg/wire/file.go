package wire

import "google.golang.org/protobuf/encoding/protowire"

// FileFilter is file.FileFilter.
type FileFilter struct {
	ID string
}

func (m *FileFilter) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.ID), nil
}

func (m *FileFilter) Unmarshal(b []byte) error {
	*m = FileFilter{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.ID)
		}
		return 0, nil
	})
}

// GetFilesRequest is file.GetFilesRequest.
type GetFilesRequest struct {
	Filter *FileFilter
	Limit  uint32
}

func (m *GetFilesRequest) Marshal() ([]byte, error) {
	var b []byte
	if m.Filter != nil {
		f, _ := m.Filter.Marshal()
		b = appendMessage(b, 1, f)
	}
	b = appendVarint(b, 2, uint64(m.Limit))
	return b, nil
}

func (m *GetFilesRequest) Unmarshal(b []byte) error {
	*m = GetFilesRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Filter = &FileFilter{}
			return consumeMessage(typ, b, m.Filter)
		case 2:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			m.Limit = uint32(v)
			return n, err
		}
		return 0, nil
	})
}

// File is file.File. Only the fields the worker reads are decoded.
type File struct {
	ID   string
	Name string
}

func (m *File) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Name)
	return b, nil
}

func (m *File) Unmarshal(b []byte) error {
	*m = File{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Name)
		}
		return 0, nil
	})
}

// GetFilesResponse is file.GetFilesResponse.
type GetFilesResponse struct {
	Files []File
}

func (m *GetFilesResponse) Marshal() ([]byte, error) {
	var b []byte
	for i := range m.Files {
		f, _ := m.Files[i].Marshal()
		b = appendMessage(b, 1, f)
	}
	return b, nil
}

func (m *GetFilesResponse) Unmarshal(b []byte) error {
	*m = GetFilesResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		var f File
		n, err := consumeMessage(typ, b, &f)
		if err == nil {
			m.Files = append(m.Files, f)
		}
		return n, err
	})
}

// FilePart is file.FilePart, the catalog record of a stored part.
type FilePart struct {
	ID     string
	Name   string
	Offset string
	Size   string
	Owner  string
}

func (m *FilePart) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Name)
	b = appendString(b, 3, m.Offset)
	b = appendString(b, 4, m.Size)
	b = appendString(b, 5, m.Owner)
	return b, nil
}

func (m *FilePart) Unmarshal(b []byte) error {
	*m = FilePart{}
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
			return consumeString(typ, b, &m.Owner)
		}
		return 0, nil
	})
}

// CreateFilePartRequest is file.CreateFilePartRequest.
type CreateFilePartRequest struct {
	ID   string // owning file (task) id
	Part *FilePart
}

func (m *CreateFilePartRequest) Marshal() ([]byte, error) {
	b := appendString(nil, 1, m.ID)
	if m.Part != nil {
		p, _ := m.Part.Marshal()
		b = appendMessage(b, 2, p)
	}
	return b, nil
}

func (m *CreateFilePartRequest) Unmarshal(b []byte) error {
	*m = CreateFilePartRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			m.Part = &FilePart{}
			return consumeMessage(typ, b, m.Part)
		}
		return 0, nil
	})
}

// BoolResponse is file.BoolResponse.
type BoolResponse struct {
	OK bool
}

func (m *BoolResponse) Marshal() ([]byte, error) {
	return appendBool(nil, 1, m.OK), nil
}

func (m *BoolResponse) Unmarshal(b []byte) error {
	*m = BoolResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBool(typ, b, &m.OK)
		}
		return 0, nil
	})
}

// DeleteFileFromStorageRequest is file.DeleteFileFromStorageRequest.
type DeleteFileFromStorageRequest struct {
	ID     string // part id
	Name   string
	Offset string
	Owner  string
	Size   string
}

func (m *DeleteFileFromStorageRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Name)
	b = appendString(b, 3, m.Offset)
	b = appendString(b, 4, m.Owner)
	b = appendString(b, 5, m.Size)
	return b, nil
}

func (m *DeleteFileFromStorageRequest) Unmarshal(b []byte) error {
	*m = DeleteFileFromStorageRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Name)
		case 3:
			return consumeString(typ, b, &m.Offset)
		case 4:
			return consumeString(typ, b, &m.Owner)
		case 5:
			return consumeString(typ, b, &m.Size)
		}
		return 0, nil
	})
}

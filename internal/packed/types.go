package packed

import (
	"encoding/binary"
	"fmt"

	proto "github.com/gogo/protobuf/proto"
)

// HeaderLen is the fixed size of the encoded header at the start of a
// snapshot file.
const HeaderLen = 32

// Header sits at offset 0 of a snapshot file and locates the directory.
type Header struct {
	Magic           uint64
	Version         uint64
	DirectoryOffset uint64
	DirectoryLength uint64
}

// Marshal encodes the header into its fixed binary form.
func (h *Header) Marshal() []byte {
	raw := make([]byte, HeaderLen)
	binary.BigEndian.PutUint64(raw[0:], h.Magic)
	binary.BigEndian.PutUint64(raw[8:], h.Version)
	binary.BigEndian.PutUint64(raw[16:], h.DirectoryOffset)
	binary.BigEndian.PutUint64(raw[24:], h.DirectoryLength)
	return raw
}

// Unmarshal decodes the fixed binary header form.
func (h *Header) Unmarshal(raw []byte) error {
	if len(raw) < HeaderLen {
		return fmt.Errorf("header truncated: %d bytes", len(raw))
	}
	h.Magic = binary.BigEndian.Uint64(raw[0:])
	h.Version = binary.BigEndian.Uint64(raw[8:])
	h.DirectoryOffset = binary.BigEndian.Uint64(raw[16:])
	h.DirectoryLength = binary.BigEndian.Uint64(raw[24:])
	return nil
}

// Directory maps each snapshot path to the location of its content
// within the snapshot file. It is encoded as a protobuf message.
type Directory struct {
	Files map[string]*File `protobuf:"bytes,1,rep,name=files" json:"files,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (d *Directory) Reset()         { *d = Directory{} }
func (d *Directory) String() string { return proto.CompactTextString(d) }
func (*Directory) ProtoMessage()    {}

// File locates one file's content within the snapshot.
type File struct {
	Offset           uint64 `protobuf:"varint,1,opt,name=offset,proto3" json:"offset,omitempty"`
	Length           uint64 `protobuf:"varint,2,opt,name=length,proto3" json:"length,omitempty"`
	ModifiedUnixNano int64  `protobuf:"varint,3,opt,name=modified_unix_nano,json=modifiedUnixNano,proto3" json:"modified_unix_nano,omitempty"`
}

func (f *File) Reset()         { *f = File{} }
func (f *File) String() string { return proto.CompactTextString(f) }
func (*File) ProtoMessage()    {}

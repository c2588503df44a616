// Package torrent binds the BitTorrent metainfo (.torrent) schema to
// the bencode codec.
package torrent

import (
	"crypto/sha1"

	"github.com/torrentkit/bencode"
	"github.com/torrentkit/bencode/wire"
)

// A Node is a DHT bootstrap node, a (host, port) pair. On the wire it
// is a two-element list, not a dictionary.
type Node struct {
	Host string
	Port int64
}

func (n Node) MarshalBencode(e *wire.Encoder) error {
	return e.List(func() error {
		e.String(n.Host)
		e.Int(n.Port)
		return nil
	})
}

func (n *Node) UnmarshalBencode(d *wire.Decoder) error {
	count, err := d.List(func(i int) error {
		switch i {
		case 0:
			var err error
			n.Host, err = d.String()
			return err
		case 1:
			var err error
			n.Port, err = d.Int()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		return err
	}
	if count != 2 {
		return wire.NewError(wire.InvalidLength, "node has %d elements, want 2", count)
	}
	return nil
}

// A File is one file of a multi-file torrent.
type File struct {
	Path   []string `bencode:"path"`
	Length int64    `bencode:"length"`
	MD5Sum *string  `bencode:"md5sum"`
}

// Info is the info dictionary of a torrent. Its canonical encoding is
// the torrent's identity; see [Torrent.InfoHash].
//
// Exactly one of Length (single-file) and Files (multi-file) is set
// in well-formed metainfo.
type Info struct {
	Name        string   `bencode:"name,required"`
	Pieces      []byte   `bencode:"pieces"`
	PieceLength int64    `bencode:"piece length"`
	MD5Sum      *string  `bencode:"md5sum"`
	Length      *int64   `bencode:"length"`
	Files       []File   `bencode:"files,omitempty"`
	Private     *int64   `bencode:"private"`
	Path        []string `bencode:"path,omitempty"`
	RootHash    *string  `bencode:"root hash"`
}

// A Torrent is the top-level metainfo dictionary of a .torrent file.
type Torrent struct {
	Info         Info       `bencode:"info,required"`
	Announce     string     `bencode:"announce,omitempty"`
	Nodes        []Node     `bencode:"nodes,omitempty"`
	Encoding     string     `bencode:"encoding,omitempty"`
	HTTPSeeds    []string   `bencode:"httpseeds,omitempty"`
	AnnounceList [][]string `bencode:"announce-list,omitempty"`
	CreationDate *int64     `bencode:"creation date"`
	Comment      string     `bencode:"comment,omitempty"`
	CreatedBy    string     `bencode:"created by,omitempty"`
}

// Parse decodes the metainfo in data.
func Parse(data []byte) (*Torrent, error) {
	var t Torrent
	if err := bencode.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// InfoHash returns the SHA-1 of the canonical encoding of the info
// dictionary. Two torrents describe the same content exactly when
// their info hashes are equal.
func (t *Torrent) InfoHash() ([20]byte, error) {
	bs, err := bencode.Marshal(t.Info)
	if err != nil {
		return [20]byte{}, err
	}
	return sha1.Sum(bs), nil
}

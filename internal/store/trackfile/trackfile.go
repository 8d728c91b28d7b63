// Package trackfile stores a track statistics dataset in a single
// self-describing file: a fixed preamble, a msgpack header describing every
// variable, then one msgpack payload per variable.
package trackfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/stormtrack/pkg/dataset"
)

var magic = [4]byte{'S', 'T', 'R', 'K'}

const (
	version      = 1
	preambleSize = 4 + 4 + 8 // magic, version, header length
)

type header struct {
	Name      string            `msgpack:"name"`
	Attrs     map[string]string `msgpack:"attrs"`
	Variables []variable        `msgpack:"variables"`
}

type variable struct {
	Name      string            `msgpack:"name"`
	Dims      []string          `msgpack:"dims"`
	Shape     []int             `msgpack:"shape"`
	Attrs     map[string]string `msgpack:"attrs"`
	FillValue float64           `msgpack:"fill_value"`
	HasFill   bool              `msgpack:"has_fill"`
	// Offset and Length locate the payload relative to the end of the header
	Offset int64 `msgpack:"offset"`
	Length int64 `msgpack:"length"`
}

// Write stores every variable of ds in path
func Write(path string, ds *dataset.Dataset) error {
	h := header{Name: ds.Name, Attrs: ds.Attrs}
	var payload bytes.Buffer

	for _, name := range ds.Variables() {
		v, err := ds.Var(name)
		if err != nil {
			return err
		}
		f, err := v.Load()
		if err != nil {
			return fmt.Errorf("loading %s: %w", name, err)
		}
		b, err := msgpack.Marshal(f.Values)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		h.Variables = append(h.Variables, variable{
			Name:      v.Name,
			Dims:      v.Dims,
			Shape:     v.Shape,
			Attrs:     v.Attrs,
			FillValue: v.FillValue,
			HasFill:   v.HasFill,
			Offset:    int64(payload.Len()),
			Length:    int64(len(b)),
		})
		payload.Write(b)
	}

	hb, err := msgpack.Marshal(&h)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}

	out := make([]byte, preambleSize, preambleSize+len(hb)+payload.Len())
	copy(out, magic[:])
	binary.LittleEndian.PutUint32(out[4:], version)
	binary.LittleEndian.PutUint64(out[8:], uint64(len(hb)))
	out = append(out, hb...)
	out = append(out, payload.Bytes()...)

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing track file: %w", err)
	}
	return nil
}

// mapped keeps the file mapping alive for the lifetime of the dataset
type mapped struct {
	f *os.File
	m mmap.MMap
}

func (mf *mapped) Close() error {
	if err := mf.m.Unmap(); err != nil {
		mf.f.Close()
		return err
	}
	return mf.f.Close()
}

// Read maps path and decodes its header. A variable's payload is decoded
// the first time any of its steps is read. Close the dataset to release the
// mapping.
func Read(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap error: %w", err)
	}
	mf := &mapped{f: f, m: m}

	ds, err := decode(m)
	if err != nil {
		mf.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.SetCloser(mf)
	return ds, nil
}

func decode(data []byte) (*dataset.Dataset, error) {
	if len(data) < preambleSize || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("not a track file")
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != version {
		return nil, fmt.Errorf("unsupported track file version %d", v)
	}
	hlen := binary.LittleEndian.Uint64(data[8:])
	if hlen > uint64(len(data)-preambleSize) {
		return nil, fmt.Errorf("truncated header")
	}
	var h header
	if err := msgpack.Unmarshal(data[preambleSize:preambleSize+int(hlen)], &h); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	body := data[preambleSize+int(hlen):]

	ds := dataset.New(h.Name, "", nil)
	for k, v := range h.Attrs {
		ds.Attrs[k] = v
	}
	for _, hv := range h.Variables {
		if hv.Offset < 0 || hv.Length < 0 || hv.Offset+hv.Length > int64(len(body)) {
			return nil, fmt.Errorf("variable %s payload out of bounds", hv.Name)
		}
		if err := checkShape(hv); err != nil {
			return nil, err
		}
		v, err := dataset.NewVariable(hv.Name, hv.Dims, hv.Shape, payloadLoader(body[hv.Offset:hv.Offset+hv.Length], hv.Shape))
		if err != nil {
			return nil, err
		}
		for k, a := range hv.Attrs {
			v.Attrs[k] = a
		}
		if hv.HasFill {
			v.WithFill(hv.FillValue)
		}
		if err := ds.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func checkShape(hv variable) error {
	if len(hv.Shape) == 0 || len(hv.Dims) != len(hv.Shape) {
		return fmt.Errorf("variable %s has dims %v and shape %v", hv.Name, hv.Dims, hv.Shape)
	}
	for _, n := range hv.Shape {
		if n < 0 {
			return fmt.Errorf("variable %s has negative extent in shape %v", hv.Name, hv.Shape)
		}
	}
	return nil
}

// payloadLoader expects a shape already accepted by checkShape
func payloadLoader(raw []byte, shape []int) dataset.StepLoader {
	var (
		once   sync.Once
		values []float64
		err    error
	)
	stride := 1
	for _, s := range shape[1:] {
		stride *= s
	}
	return func(step int) ([]float64, error) {
		once.Do(func() {
			err = msgpack.Unmarshal(raw, &values)
			if err == nil && len(values) != stride*shape[0] {
				err = fmt.Errorf("payload has %d values, expected %d", len(values), stride*shape[0])
			}
		})
		if err != nil {
			return nil, err
		}
		return values[step*stride : (step+1)*stride], nil
	}
}

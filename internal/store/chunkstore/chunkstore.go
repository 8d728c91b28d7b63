// Package chunkstore reads and writes datasets as a directory of chunks, one
// file per variable per leading-dimension step. Chunks are only read when a
// step is requested.
package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/edsrzf/mmap-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/stormtrack/pkg/cftime"
	"github.com/chrissnell/stormtrack/pkg/dataset"
)

const (
	metaFile      = "meta.msgpack"
	formatVersion = 1
)

type storeMeta struct {
	Format    int               `msgpack:"format"`
	Name      string            `msgpack:"name"`
	TimeDim   string            `msgpack:"time_dim"`
	TimeUnits string            `msgpack:"time_units"`
	Calendar  string            `msgpack:"calendar"`
	Times     []float64         `msgpack:"times"`
	Attrs     map[string]string `msgpack:"attrs"`
	Variables []varMeta         `msgpack:"variables"`
}

type varMeta struct {
	Name      string            `msgpack:"name"`
	Dims      []string          `msgpack:"dims"`
	Shape     []int             `msgpack:"shape"`
	Attrs     map[string]string `msgpack:"attrs"`
	FillValue float64           `msgpack:"fill_value"`
	HasFill   bool              `msgpack:"has_fill"`
}

// Create writes ds under dir, encoding its time axis with coord. dir is
// created if needed; existing chunks are overwritten.
func Create(dir string, ds *dataset.Dataset, coord cftime.Coordinate) error {
	times, err := coord.EncodeAll(ds.Times)
	if err != nil {
		return fmt.Errorf("encoding time axis: %w", err)
	}
	meta := storeMeta{
		Format:    formatVersion,
		Name:      ds.Name,
		TimeDim:   ds.TimeDim,
		TimeUnits: coord.Units.String(),
		Calendar:  coord.Calendar.String(),
		Times:     times,
		Attrs:     ds.Attrs,
	}

	for _, name := range ds.Variables() {
		v, err := ds.Var(name)
		if err != nil {
			return err
		}
		meta.Variables = append(meta.Variables, varMeta{
			Name:      v.Name,
			Dims:      v.Dims,
			Shape:     v.Shape,
			Attrs:     v.Attrs,
			FillValue: v.FillValue,
			HasFill:   v.HasFill,
		})
		if err := writeChunks(dir, v); err != nil {
			return err
		}
	}

	b, err := msgpack.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encoding store metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), b, 0644); err != nil {
		return fmt.Errorf("writing store metadata: %w", err)
	}
	return nil
}

func writeChunks(dir string, v *dataset.Variable) error {
	varDir := filepath.Join(dir, v.Name)
	if err := os.MkdirAll(varDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory for %s: %w", v.Name, err)
	}
	for i := 0; i < v.Steps(); i++ {
		f, err := v.Step(i)
		if err != nil {
			return err
		}
		b, err := msgpack.Marshal(f.Values)
		if err != nil {
			return fmt.Errorf("encoding %s step %d: %w", v.Name, i, err)
		}
		if err := os.WriteFile(chunkPath(dir, v.Name, i), b, 0644); err != nil {
			return fmt.Errorf("writing %s step %d: %w", v.Name, i, err)
		}
	}
	return nil
}

func chunkPath(dir, name string, step int) string {
	return filepath.Join(dir, name, strconv.Itoa(step)+".chunk")
}

// Open reads the store metadata under dir. Variable data stays on disk until
// a step is requested or the variable is loaded.
func Open(dir string) (*dataset.Dataset, error) {
	b, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, fmt.Errorf("reading store metadata: %w", err)
	}
	var meta storeMeta
	if err := msgpack.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decoding store metadata: %w", err)
	}
	if meta.Format != formatVersion {
		return nil, fmt.Errorf("unsupported chunk store format %d", meta.Format)
	}

	var times []cftime.TimePoint
	if meta.TimeDim != "" {
		coord, err := cftime.NewCoordinate(meta.TimeUnits, meta.Calendar)
		if err != nil {
			return nil, fmt.Errorf("decoding time axis: %w", err)
		}
		times = coord.DecodeAll(meta.Times)
	}

	ds := dataset.New(meta.Name, meta.TimeDim, times)
	for k, v := range meta.Attrs {
		ds.Attrs[k] = v
	}
	for _, vm := range meta.Variables {
		v, err := dataset.NewVariable(vm.Name, vm.Dims, vm.Shape, chunkLoader(dir, vm.Name))
		if err != nil {
			return nil, err
		}
		for k, a := range vm.Attrs {
			v.Attrs[k] = a
		}
		if vm.HasFill {
			v.WithFill(vm.FillValue)
		}
		if err := ds.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func chunkLoader(dir, name string) dataset.StepLoader {
	return func(step int) ([]float64, error) {
		return readChunk(chunkPath(dir, name, step))
	}
}

func readChunk(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap error: %w", err)
	}
	defer m.Unmap()

	var values []float64
	if err := msgpack.Unmarshal(m, &values); err != nil {
		return nil, fmt.Errorf("decoding chunk %s: %w", path, err)
	}
	return values, nil
}

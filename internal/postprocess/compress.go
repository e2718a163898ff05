package postprocess

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var errEncrypted = errors.New("encrypted pdf")

// Compress rewrites the PDF at path with its streams recompressed at the
// processor's quality level. The rewrite goes to a sibling temp file and
// replaces the original only when it is smaller, so repeated passes never
// grow a file.
func (p *Processor) Compress(path string) error {
	before, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if ctx.XRefTable.Encrypt != nil {
		return errEncrypted
	}
	if err := api.ValidateContext(ctx); err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}
	if err := api.OptimizeContext(ctx); err != nil {
		return fmt.Errorf("optimize %s: %w", path, err)
	}
	if _, err := recompressStreams(ctx, p.quality.Level()); err != nil {
		return fmt.Errorf("recompress %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := api.WriteContextFile(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	after, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("stat %s: %w", tmp, err)
	}
	if after.Size() >= before.Size() {
		return os.Remove(tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// recompressStreams deflates every plain or Flate-only stream at level and
// keeps the new encoding when it is smaller. It returns the number of
// streams it rewrote.
func recompressStreams(ctx *model.Context, level int) (int, error) {
	rewritten := 0
	for _, entry := range ctx.XRefTable.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok || !recompressible(sd) {
			continue
		}
		plain, err := decodedContent(sd)
		if err != nil {
			// Leave streams we cannot decode exactly as they were.
			continue
		}
		raw, err := deflate(plain, level)
		if err != nil {
			return rewritten, err
		}
		if len(raw) >= len(sd.Raw) {
			continue
		}
		length := int64(len(raw))
		sd.Raw = raw
		sd.StreamLength = &length
		sd.FilterPipeline = []types.PDFFilter{{Name: filter.Flate}}
		sd.Dict["Filter"] = types.Name(filter.Flate)
		sd.Dict["Length"] = types.Integer(len(raw))
		delete(sd.Dict, "DecodeParms")
		entry.Object = sd
		rewritten++
	}
	return rewritten, nil
}

func recompressible(sd types.StreamDict) bool {
	if sd.Raw == nil {
		return false
	}
	if t := sd.Dict.Type(); t != nil {
		switch *t {
		case "XRef", "ObjStm", "Metadata":
			return false
		}
	}
	switch len(sd.FilterPipeline) {
	case 0:
		return true
	case 1:
		f := sd.FilterPipeline[0]
		return f.Name == filter.Flate && len(f.DecodeParms) == 0
	default:
		return false
	}
}

func decodedContent(sd types.StreamDict) ([]byte, error) {
	if len(sd.FilterPipeline) == 0 {
		return sd.Raw, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(sd.Raw))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

package preprocess

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/io"
	"github.com/phil-mansfield/qcloud/volume"
)

// ParamsFromConfig converts a checked [Preprocess] section into filter
// parameters.
func ParamsFromConfig(con *io.PreprocessConfig) Params {
	return Params{
		StepSize:      con.StepSize,
		MinThreshold:  float32(con.MinThreshold),
		MaxThreshold:  float32(con.MaxThreshold),
		MissingValue:  float32(con.MissingValue),
		ExcludeOrigin: con.ExcludeOrigin,
		MaxParticles:  con.MaxParticles,
		Dims:          con.Dims(),
	}
}

// Result is what Run hands back to its caller.
type Result struct {
	Header qcloud.Header
	Stats  Stats
	Bytes  int64
}

// Run reads the configured dataset out of src, filters it, and writes the
// result to con.Output in the configured format. Failures reading the source
// abort before anything is written.
func Run(src volume.Source, con *io.PreprocessConfig, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if src == nil {
		return nil, &qcloud.ConfigurationError{What: "source volume"}
	} else if con.Output == "" {
		return nil, &qcloud.ConfigurationError{What: "output path"}
	}

	p := ParamsFromConfig(con)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	log.Info("Reading source volume.",
		zap.String("source", volume.Describe(src)),
		zap.String("dataset", con.Dataset))
	t0 := time.Now()
	flat, err := src.Read(con.Dataset)
	if err != nil {
		return nil, err
	}
	log.Info("Read source volume.",
		zap.String("values", humanize.Comma(int64(len(flat)))),
		zap.Duration("elapsed", time.Since(t0)))

	ps, hd, st := Filter(flat, p, log)
	for _, line := range st.Summary(p) {
		log.Info(line)
	}

	res := &Result{Header: hd, Stats: st}
	switch con.Format {
	case "Binary":
		err = io.WriteContainerFile(con.Output, hd, ps)
		res.Bytes = int64(qcloud.HeaderSize + len(ps)*qcloud.ParticleSize)
	case "Asset":
		// Assets cannot hold zero records.
		if len(ps) == 0 {
			return nil, qcloud.FormatError(con.Input, nil,
				"no particles passed the filter, refusing to bake an empty asset")
		}
		var a *io.Asset
		if a, err = io.NewAsset(hd, ps); err == nil {
			err = io.WriteAssetFile(con.Output, a)
			res.Bytes = int64(len(ps) * qcloud.ParticleSize)
		}
	default:
		err = fmt.Errorf("Unrecognized output format '%s'.", con.Format)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Wrote particles.",
		zap.String("output", con.Output),
		zap.String("format", con.Format),
		zap.String("particles", humanize.Comma(int64(hd.Count))),
		zap.String("size", humanize.Bytes(uint64(res.Bytes))))
	return res, nil
}

package pipeline

import "github.com/quantlab/tickhist/internal/tabio"

// Default directory resolution for the fixed data layout. An explicit
// override directory always wins; otherwise each format has its own
// conventional directory under the base data dir.

func (p *Pipeline) tickDir(f tabio.Format, override string) string {
	if override != "" {
		return override
	}
	if f == tabio.FormatParquet {
		return p.cfg.Dir(p.cfg.Data.TickParquetDir)
	}
	return p.cfg.Dir(p.cfg.Data.TickCSVDir)
}

func (p *Pipeline) prepDir(f tabio.Format, override string) string {
	if override != "" {
		return override
	}
	if f == tabio.FormatParquet {
		return p.cfg.Dir(p.cfg.Data.PrepParquetDir)
	}
	return p.cfg.Dir(p.cfg.Data.PrepCSVDir)
}

func (p *Pipeline) aggrDir(f tabio.Format, override string) string {
	if override != "" {
		return override
	}
	if f == tabio.FormatParquet {
		return p.cfg.Dir(p.cfg.Data.AggrParquetDir)
	}
	return p.cfg.Dir(p.cfg.Data.AggrCSVDir)
}

func (p *Pipeline) dbDir(override string) string {
	if override != "" {
		return override
	}
	return p.cfg.Dir(p.cfg.Data.AggrDBDir)
}

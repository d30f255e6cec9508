// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"relpak/pkg/archive"
	"relpak/pkg/fileset"
)

// RemovedListName is the archive entry inside a delta package that records
// the relative paths removed since the prior version, one per line. The
// applying side reads it to delete those files.
const RemovedListName = ".relpak-removed"

type (
	// State is the builder's lifecycle position. It only moves forward:
	// Configured → Scanning → Planning → Building → Finalized, with Failed
	// reachable from any non-terminal state.
	State int32

	// Request asks the builder for one artifact of the configured version.
	Request struct {
		Kind   Kind
		Format archive.Format
		// Level is the compression level for backends that support one.
		Level int
	}

	// Options configures a build invocation. All inputs are explicit — the
	// builder keeps no process-wide state.
	Options struct {
		// Name and Version identify the release being packaged.
		Name    string
		Version string

		// SourceDir is the folder of build output to package.
		SourceDir string
		// PreviousDir and PreviousVersion describe the prior version used by
		// delta requests.
		PreviousDir     string
		PreviousVersion string

		// OutputDir receives the produced artifacts and the manifest.
		OutputDir string

		// Include and Exclude are whole-path regular expressions applied to
		// slash-normalized relative paths.
		Include []string
		Exclude []string

		// Policy selects the delta comparison signature.
		Policy fileset.SignaturePolicy

		// Parallelism bounds concurrent compression jobs; 0 means the number
		// of CPUs.
		Parallelism int

		// ExistingPackages lists previously built artifacts that may be
		// reused instead of recompressed. Trusted by filename, not content.
		ExistingPackages []string

		// NuspecAuthors and NuspecDescription feed the nupkg backend.
		NuspecAuthors     string
		NuspecDescription string

		// Progress, if non-nil, receives monotonically non-decreasing values
		// in [0,1] for the duration of the build.
		Progress func(float64)

		// Logger receives build diagnostics. Defaults to a stderr logger.
		Logger *log.Logger
	}

	// Builder runs the end-to-end "build a release" workflow.
	Builder struct {
		opts   Options
		reqs   []Request
		descs  []Descriptor
		logger *log.Logger
		state  atomic.Int32
	}

	// planEntry is one descriptor's build decision: reuse an existing
	// artifact or run a compression job.
	planEntry struct {
		desc     Descriptor
		dest     string
		reused   *Record
		jobIndex int // index into the job list, -1 when reused
	}
)

// Builder lifecycle states.
const (
	StateConfigured State = iota
	StateScanning
	StatePlanning
	StateBuilding
	StateFinalized
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateScanning:
		return "scanning"
	case StatePlanning:
		return "planning"
	case StateBuilding:
		return "building"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// New validates the options against the requested artifacts and returns a
// configured Builder. Validation failures here are fatal before any
// filesystem traversal or job starts.
func New(opts Options, reqs []Request) (*Builder, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no packages requested")
	}
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("source folder must not be empty")
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output folder must not be empty")
	}

	descs := make([]Descriptor, 0, len(reqs))
	for _, r := range reqs {
		d := Descriptor{
			Name:    opts.Name,
			Version: opts.Version,
			Kind:    r.Kind,
			Format:  r.Format,
		}
		if r.Kind == KindDelta {
			if opts.PreviousDir == "" {
				return nil, fmt.Errorf("delta package requires a prior-version folder")
			}
			d.FromVersion = opts.PreviousVersion
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "relpak"})
	}

	return &Builder{opts: opts, reqs: reqs, descs: descs, logger: logger}, nil
}

// State returns the builder's current lifecycle state.
func (b *Builder) State() State {
	return State(b.state.Load())
}

// Descriptors returns the artifacts the builder intends to produce, in
// request order.
func (b *Builder) Descriptors() []Descriptor {
	return b.descs
}

func (b *Builder) setState(s State) {
	b.state.Store(int32(s))
}

func (b *Builder) fail(err error) error {
	b.setState(StateFailed)
	return err
}

// Run executes the build: scan, plan, compress, finalize. On full success it
// returns the manifest and the reported progress has reached exactly 1.0. If
// some jobs failed, the manifest reflecting partial results is returned
// together with a PartialBuildError; successful artifacts stay on disk.
func (b *Builder) Run(ctx context.Context) (*Manifest, error) {
	// Scanning: materialize the exact file sets to archive.
	b.setState(StateScanning)

	spec, err := fileset.CompileSpec(b.opts.Include, b.opts.Exclude)
	if err != nil {
		return nil, b.fail(err)
	}

	snap, err := fileset.Take(b.opts.SourceDir, spec, b.opts.Policy)
	if err != nil {
		return nil, b.fail(err)
	}
	if snap.Len() == 0 {
		kind := KindFull
		if !b.needsFull() {
			kind = KindDelta
		}
		return nil, b.fail(&EmptyFileSetError{Folder: b.opts.SourceDir, Kind: kind})
	}
	b.logger.Debug("scanned source folder", "folder", b.opts.SourceDir, "files", snap.Len(), "bytes", snap.TotalSize())

	var changes []fileset.Change
	if b.needsDelta() {
		prev, prevErr := fileset.Take(b.opts.PreviousDir, spec, b.opts.Policy)
		if prevErr != nil {
			return nil, b.fail(prevErr)
		}
		changes = fileset.Diff(prev, snap, b.opts.Policy)
		if len(changes) == 0 {
			return nil, b.fail(&EmptyFileSetError{Folder: b.opts.SourceDir, Kind: KindDelta})
		}
		b.logger.Debug("computed delta", "from", b.opts.PreviousVersion, "changes", len(changes))
	}

	scratch, err := os.MkdirTemp("", "relpak-*")
	if err != nil {
		return nil, b.fail(fmt.Errorf("failed to create scratch folder: %w", err))
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	// Planning: decide reuse vs. build for every descriptor.
	b.setState(StatePlanning)

	if err = os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
		return nil, b.fail(fmt.Errorf("failed to create output folder: %w", err))
	}

	reuse := NewReuseSet(b.opts.ExistingPackages, b.logger)
	plan := make([]planEntry, 0, len(b.descs))
	var jobs []Job

	for i, desc := range b.descs {
		entry := planEntry{desc: desc, jobIndex: -1}
		entry.dest = filepath.Join(b.opts.OutputDir, desc.FileName())

		if rec, ok := reuse.Find(desc); ok {
			r := rec
			entry.reused = &r
			plan = append(plan, entry)
			b.logger.Info("reusing existing package", "package", desc.FileName(), "from", rec.Path)
			continue
		}

		arch, newErr := archive.New(archive.Options{
			Format: desc.Format,
			Level:  b.reqs[i].Level,
			Nuspec: archive.Nuspec{
				ID:          desc.Name,
				Version:     desc.Version,
				Authors:     b.opts.NuspecAuthors,
				Description: b.opts.NuspecDescription,
			},
		})
		if newErr != nil {
			return nil, b.fail(newErr)
		}

		files, filesErr := b.jobFiles(desc, snap, changes, scratch)
		if filesErr != nil {
			return nil, b.fail(filesErr)
		}

		entry.jobIndex = len(jobs)
		jobs = append(jobs, Job{Descriptor: desc, Files: files, Dest: entry.dest, Archiver: arch})
		plan = append(plan, entry)
	}

	// Building: hand the job list to the bounded worker pool.
	b.setState(StateBuilding)
	results := RunJobs(ctx, jobs, b.opts.Parallelism, b.opts.Progress, b.logger)

	// Finalized: assemble the manifest in descriptor order.
	manifest := &Manifest{
		Name:        b.opts.Name,
		Version:     b.opts.Version,
		GeneratedAt: time.Now().UTC(),
		Entries:     make([]Entry, 0, len(plan)),
	}

	var failed []FailedPackage
	for _, entry := range plan {
		me := Entry{
			Package:     entry.desc.FileName(),
			Version:     entry.desc.Version,
			Kind:        entry.desc.Kind,
			Format:      entry.desc.Format,
			FromVersion: entry.desc.FromVersion,
		}

		switch {
		case entry.reused != nil:
			if copyErr := copyFileAtomic(entry.reused.Path, entry.dest); copyErr != nil {
				me.Outcome = OutcomeFailed
				me.Error = copyErr.Error()
				failed = append(failed, FailedPackage{Descriptor: entry.desc, Err: copyErr})
				break
			}
			me.Outcome = OutcomeSkipped
			me.ReusedFrom = entry.reused.Path
			me.Path = entry.dest
		default:
			res := results[entry.jobIndex]
			if res.Err != nil {
				me.Outcome = OutcomeFailed
				me.Error = res.Err.Error()
				failed = append(failed, FailedPackage{Descriptor: entry.desc, Err: res.Err})
				break
			}
			me.Outcome = OutcomeBuilt
			me.Path = entry.dest
		}

		if me.Path != "" {
			if sum, size, hashErr := hashArtifact(me.Path); hashErr == nil {
				me.SHA256 = sum
				me.Size = size
			}
		}
		manifest.Entries = append(manifest.Entries, me)
	}

	manifestPath, err := manifest.WriteFile(b.opts.OutputDir)
	if err != nil {
		return manifest, b.fail(err)
	}
	b.logger.Debug("wrote manifest", "path", manifestPath)

	if len(failed) > 0 {
		return manifest, b.fail(&PartialBuildError{Failed: failed, Total: len(plan)})
	}

	if b.opts.Progress != nil {
		// All-reused builds never ran a job; completion still reports 1.0.
		b.opts.Progress(1)
	}
	b.setState(StateFinalized)
	return manifest, nil
}

// needsFull reports whether any request asks for a full package.
func (b *Builder) needsFull() bool {
	for _, r := range b.reqs {
		if r.Kind == KindFull {
			return true
		}
	}
	return false
}

// needsDelta reports whether any request asks for a delta package.
func (b *Builder) needsDelta() bool {
	for _, r := range b.reqs {
		if r.Kind == KindDelta {
			return true
		}
	}
	return false
}

// jobFiles assembles the archive file set for one descriptor. Full packages
// take the whole snapshot; delta packages take added and modified payloads
// plus a generated removed-paths list.
func (b *Builder) jobFiles(desc Descriptor, snap *fileset.Snapshot, changes []fileset.Change, scratch string) ([]archive.File, error) {
	if desc.Kind == KindFull {
		files := make([]archive.File, 0, snap.Len())
		for _, f := range snap.Files() {
			files = append(files, archive.File{RelPath: f.RelPath, AbsPath: f.AbsPath, Size: f.Size})
		}
		return files, nil
	}

	var files []archive.File
	var removed []string
	for _, c := range changes {
		switch c.Kind {
		case fileset.Removed:
			removed = append(removed, c.Path)
		default:
			files = append(files, archive.File{RelPath: c.File.RelPath, AbsPath: c.File.AbsPath, Size: c.File.Size})
		}
	}

	if len(removed) > 0 {
		listPath := filepath.Join(scratch, desc.FileName()+".removed")
		data := strings.Join(removed, "\n") + "\n"
		if err := os.WriteFile(listPath, []byte(data), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write removed-paths list: %w", err)
		}
		files = append(files, archive.File{RelPath: RemovedListName, AbsPath: listPath, Size: int64(len(data))})
	}

	return files, nil
}

// copyFileAtomic copies src into dest via a temporary file in dest's folder
// and an atomic rename, mirroring the archiver write rule: no partial file
// ever sits at the final path.
func copyFileAtomic(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open existing package %q: %w", src, err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return fmt.Errorf("failed to copy existing package: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to rename package into place: %w", err)
	}
	return nil
}

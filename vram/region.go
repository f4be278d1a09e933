package vram

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/ppu/memutils"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"github.com/vkngwrapper/ppu/memutils/metadata"
	"golang.org/x/exp/slog"
)

// MapBinding is the tile set and palette bank a background map's cells are relative to. Tiles
// should be NoHandle for a map that is not bound to any tile set.
type MapBinding struct {
	Tiles       Handle
	PaletteBank int
}

var unbound = MapBinding{Tiles: NoHandle}

// blockInfo is attached to every Used block as its metadata user data. It stays attached
// while the block is PendingRemoval so that the block can be resurrected.
type blockInfo struct {
	identity Identity
	raw      bool
	indexed  bool
	source   []byte

	// generation changes every time a block id is handed to a new allocation
	generation uint64
	dirty      bool

	binding    MapBinding
	cellOffset uint16
}

type counters struct {
	created        int
	deduplicated   int
	resurrected    int
	failed         int
	forcedReclaims int
	reclaimed      int
	commit         commit.PassStats
}

// region is the block allocator shared by the background and sprite managers. It owns the
// metadata for one contiguous area of display memory, the identity index used to deduplicate
// uploads and the scheduler for blocks waiting to be committed.
type region struct {
	name      string
	logger    *slog.Logger
	flags     CreateFlags
	unitBytes int

	meta       *metadata.BlockMetadata
	identities *swiss.Map[Identity, metadata.BlockID]
	scheduler  commit.Scheduler
	sink       commit.Sink
	decoder    commit.Decoder

	// delayCommit is set by a forced reclaim and cleared at the next frame reclaim. While it
	// is set, new blocks are queued instead of uploaded, so PendingRemoval memory that may
	// still be on screen can be reused.
	delayCommit bool
	dirtyCount  int
	generation  uint64

	counters counters
}

var _ memutils.Validatable = &region{}
var _ Owner = &region{}

func newRegion(logger *slog.Logger, config regionConfig) *region {
	r := &region{
		name:       config.name,
		logger:     discardIfNil(logger),
		flags:      config.flags,
		unitBytes:  config.unitBytes,
		meta:       metadata.NewBlockMetadata(config.maxItems),
		identities: swiss.NewMap[Identity, metadata.BlockID](uint32(config.maxItems)),
		sink:       config.sink,
		decoder:    config.decoder,
	}
	r.meta.Init(config.units)
	r.scheduler.Valid = r.jobValid
	r.scheduler.Committed = r.jobCommitted

	return r
}

type createRequest struct {
	identity   Identity
	source     []byte
	units      int
	policy     metadata.PaddingPolicy
	binding    MapBinding
	cellOffset uint16
	raw        bool
	required   bool
}

func must(err error, format string, args ...any) {
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, format, args...))
	}
}

func (r *region) invalidHandle(handle Handle) {
	panic(errors.WithAssertionFailure(errors.Wrapf(ErrInvalidHandle, "%s handle %d", r.name, handle)))
}

// usedInfo returns the block behind a handle, panicking if the handle does not refer to a
// Used block
func (r *region) usedInfo(handle Handle) (metadata.BlockID, *blockInfo) {
	id := metadata.BlockID(handle)

	status, err := r.meta.Status(id)
	if err != nil || status != metadata.BlockUsed {
		r.invalidHandle(handle)
	}

	userData, err := r.meta.UserData(id)
	if err != nil {
		r.invalidHandle(handle)
	}

	info, ok := userData.(*blockInfo)
	if !ok || info == nil {
		r.invalidHandle(handle)
	}

	return id, info
}

func (r *region) validateIfRequested() {
	if r.flags&CreateValidate != 0 {
		must(r.Validate(), "%s region failed validation", r.name)
	}

	memutils.DebugValidate(r)
}

func (r *region) checkSource(identity Identity, source []byte, units int) {
	if identity.Encoding.IsCompressed() {
		if r.decoder == nil {
			invalidRequest("%s %s source is %s encoded, but no decoder was provided", r.name, identity.Kind, identity.Encoding)
		}
		return
	}

	if len(source) > identity.byteSize() {
		invalidRequest("%s %s source of %d bytes is larger than its %d byte shape", r.name, identity.Kind, len(source), identity.byteSize())
	}

	if len(source) > units*r.unitBytes {
		invalidRequest("%s %s source of %d bytes does not fit in %d units", r.name, identity.Kind, len(source), units)
	}
}

// find returns the block holding a resource with the provided identity, retaining it if it is
// in use and resurrecting it if it is pending removal
func (r *region) find(identity Identity) (Handle, bool) {
	id, ok := r.identities.Get(identity)
	if !ok {
		return NoHandle, false
	}

	status, err := r.meta.Status(id)
	must(err, "%s identity index refers to dead block %d", r.name, id)

	switch status {
	case metadata.BlockUsed:
		must(r.meta.Retain(id), "failed to retain %s block %d", r.name, id)
		r.counters.deduplicated++
	case metadata.BlockPendingRemoval:
		must(r.meta.Resurrect(id), "failed to resurrect %s block %d", r.name, id)
		r.counters.resurrected++
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Resurrected block", slog.String("Region", r.name), slog.Int("block.id", int(id)))
	default:
		panic(errors.AssertionFailedf("%s identity index refers to free block %d", r.name, id))
	}

	r.validateIfRequested()
	return Handle(id), true
}

// allocate finds room for units of memory, forcing a reclaim and retrying once if the
// reclaimable space could satisfy the request
func (r *region) allocate(units int, policy metadata.PaddingPolicy) (metadata.AllocationRequest, bool) {
	success, allocRequest, err := r.meta.CreateAllocationRequest(units, policy, r.delayCommit)
	must(err, "invalid %s allocation request", r.name)
	if success {
		return allocRequest, true
	}

	pending := r.meta.SumPendingSize()
	if pending == 0 || r.meta.SumFreeSize()+pending < units {
		return allocRequest, false
	}

	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Forcing reclaim",
		slog.String("Region", r.name),
		slog.Int("Units", units),
		slog.Int("FreeUnits", r.meta.SumFreeSize()),
		slog.Int("PendingUnits", pending),
	)
	r.counters.forcedReclaims++
	r.delayCommit = true
	r.reclaimPass()

	success, allocRequest, err = r.meta.CreateAllocationRequest(units, policy, r.delayCommit)
	must(err, "invalid %s allocation request", r.name)
	return allocRequest, success
}

func (r *region) create(req createRequest) (Handle, error) {
	if req.identity.Kind != KindMap {
		req.binding = unbound
		req.cellOffset = 0
	}

	if !req.raw {
		r.checkSource(req.identity, req.source, req.units)

		handle, found := r.find(req.identity)
		if found {
			r.rebind(handle, req.binding, req.cellOffset)
			return handle, nil
		}
	}

	allocRequest, ok := r.allocate(req.units, req.policy)
	if !ok {
		return r.fail(req)
	}

	var releases []Handle
	if allocRequest.Reused {
		userData, err := r.meta.UserData(allocRequest.Block)
		must(err, "failed to read reused %s block %d", r.name, allocRequest.Block)

		if previous, isInfo := userData.(*blockInfo); isInfo && previous != nil {
			releases = r.forget(allocRequest.Block, previous, releases)
		}
	}

	r.generation++
	info := &blockInfo{
		identity:   req.identity,
		raw:        req.raw,
		source:     req.source,
		generation: r.generation,
		binding:    req.binding,
		cellOffset: req.cellOffset,
	}
	must(r.meta.Alloc(allocRequest, info), "failed to allocate %s block %d", r.name, allocRequest.Block)
	id := allocRequest.Block

	if !req.raw {
		r.identities.Put(req.identity, id)
		info.indexed = true
	}

	if req.binding.Tiles != NoHandle {
		r.Retain(req.binding.Tiles)
	}

	for _, handle := range releases {
		r.Release(handle)
	}

	if !req.raw {
		if r.delayCommit || r.flags&CreateDeferUploads != 0 {
			r.markDirtyInfo(info)
		} else if err := r.upload(id, info); err != nil {
			r.abandon(id, info)
			err = errors.Wrapf(err, "failed to upload %s %s", r.name, req.identity.Kind)
			if req.required {
				panic(err)
			}
			return NoHandle, err
		}
	}

	r.counters.created++
	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Allocated block",
		slog.String("Region", r.name),
		slog.String("Kind", req.identity.Kind.String()),
		slog.Int("block.id", int(id)),
		slog.Int("Offset", allocRequest.Offset),
		slog.Int("Units", req.units),
		slog.Bool("Reused", allocRequest.Reused),
		slog.Bool("Dirty", info.dirty),
	)

	r.validateIfRequested()
	return Handle(id), nil
}

func (r *region) fail(req createRequest) (Handle, error) {
	r.counters.failed++
	err := errors.Wrapf(ErrOutOfVRAM, "%s region could not fit %s of %d units", r.name, req.identity.Kind, req.units)

	if !req.required {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Optional allocation failed",
			slog.String("Region", r.name),
			slog.Int("Units", req.units),
		)
		return NoHandle, err
	}

	dump := r.BuildStatsString()
	r.logger.LogAttrs(context.Background(), slog.LevelError, "Required allocation failed",
		slog.String("Region", r.name),
		slog.Int("Units", req.units),
		slog.String("Status", dump),
	)
	panic(errors.WithDetail(err, dump))
}

// abandon releases a block whose initial upload failed so that it can never be found again
func (r *region) abandon(id metadata.BlockID, info *blockInfo) {
	r.unindex(id, info)
	_, err := r.meta.Release(id)
	must(err, "failed to release %s block %d", r.name, id)
}

func (r *region) unindex(id metadata.BlockID, info *blockInfo) {
	if !info.indexed {
		return
	}

	current, ok := r.identities.Get(info.identity)
	if ok && current == id {
		r.identities.Delete(info.identity)
	}
	info.indexed = false
}

// forget drops everything that refers to a PendingRemoval block that is about to be reclaimed
// or reused. Tile sets the block was bound to are returned so they can be released once the
// metadata is no longer being modified.
func (r *region) forget(id metadata.BlockID, info *blockInfo, releases []Handle) []Handle {
	r.unindex(id, info)

	if info.dirty {
		info.dirty = false
		r.dirtyCount--
	}
	info.source = nil

	if info.binding.Tiles != NoHandle {
		releases = append(releases, info.binding.Tiles)
		info.binding = unbound
	}

	return releases
}

// rebind changes the tile set and palette bank a map block is bound to, flagging it dirty so
// that its cells are rewritten with the new offset
func (r *region) rebind(handle Handle, binding MapBinding, cellOffset uint16) {
	_, info := r.usedInfo(handle)
	if info.binding == binding && info.cellOffset == cellOffset {
		return
	}

	if binding.Tiles != NoHandle {
		r.Retain(binding.Tiles)
	}

	previous := info.binding.Tiles
	info.binding = binding
	info.cellOffset = cellOffset
	r.markDirtyInfo(info)

	if previous != NoHandle {
		r.Release(previous)
	}
}

func (r *region) markDirtyInfo(info *blockInfo) {
	if !info.dirty {
		info.dirty = true
		r.dirtyCount++
	}
}

func (r *region) job(id metadata.BlockID, info *blockInfo) commit.Job {
	offset, err := r.meta.Offset(id)
	must(err, "failed to read %s block %d", r.name, id)
	units, err := r.meta.Size(id)
	must(err, "failed to read %s block %d", r.name, id)

	size := info.identity.byteSize()
	if size == 0 || size > units*r.unitBytes {
		size = units * r.unitBytes
	}

	return commit.Job{
		Block:      id,
		Offset:     offset * r.unitBytes,
		Size:       size,
		Source:     info.source,
		Encoding:   info.identity.Encoding,
		CellOffset: info.cellOffset,
		Generation: info.generation,
	}
}

func (r *region) upload(id metadata.BlockID, info *blockInfo) error {
	stats, err := commit.WriteJob(r.sink, r.decoder, r.job(id, info), false)
	r.counters.commit.Add(stats)
	return err
}

func (r *region) jobInfo(job commit.Job) *blockInfo {
	status, err := r.meta.Status(job.Block)
	if err != nil || status != metadata.BlockUsed {
		return nil
	}

	userData, err := r.meta.UserData(job.Block)
	if err != nil {
		return nil
	}

	info, ok := userData.(*blockInfo)
	if !ok || info == nil || info.generation != job.Generation {
		return nil
	}

	return info
}

func (r *region) jobValid(job commit.Job) bool {
	info := r.jobInfo(job)
	return info != nil && info.dirty
}

func (r *region) jobCommitted(job commit.Job) {
	info := r.jobInfo(job)
	if info != nil && info.dirty {
		info.dirty = false
		r.dirtyCount--
	}
}

// reclaimPass turns every PendingRemoval block into free space and rebuilds the commit
// queues from the Used blocks that are dirty
func (r *region) reclaimPass() {
	var releases []Handle

	reclaimed := r.meta.Reclaim(func(id metadata.BlockID, userData any) {
		info, ok := userData.(*blockInfo)
		if ok && info != nil {
			releases = r.forget(id, info, releases)
		}
	})
	r.counters.reclaimed += reclaimed

	r.rebuildQueues()

	if reclaimed > 0 {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Reclaimed blocks",
			slog.String("Region", r.name),
			slog.Int("Count", reclaimed),
			slog.Int("FreeUnits", r.meta.SumFreeSize()),
		)
	}

	// Map blocks hold a reference to their tile set until they are reclaimed
	for _, handle := range releases {
		r.Release(handle)
	}
}

func (r *region) rebuildQueues() {
	r.scheduler.Reset()
	if r.dirtyCount == 0 {
		return
	}

	_ = r.meta.VisitAllRegions(func(id metadata.BlockID, block metadata.Suballocation) error {
		if block.Status != metadata.BlockUsed {
			return nil
		}

		info, ok := block.UserData.(*blockInfo)
		if ok && info != nil && info.dirty {
			r.scheduler.Enqueue(r.job(id, info))
		}

		return nil
	})
}

// Retain adds a reference to a block. The handle must refer to a block that is in use.
func (r *region) Retain(handle Handle) {
	id, _ := r.usedInfo(handle)
	must(r.meta.Retain(id), "failed to retain %s block %d", r.name, id)
}

// Release removes a reference from a block. When the last reference is released the block
// becomes pending removal: its memory is reclaimed by the next call to Reclaim, unless the
// same resource is created again first.
func (r *region) Release(handle Handle) {
	id, _ := r.usedInfo(handle)

	removed, err := r.meta.Release(id)
	must(err, "failed to release %s block %d", r.name, id)

	if removed {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "Released block", slog.String("Region", r.name), slog.Int("block.id", int(id)))
	}

	r.validateIfRequested()
}

// UsageCount returns the number of outstanding references to a block
func (r *region) UsageCount(handle Handle) int {
	id, _ := r.usedInfo(handle)
	count, err := r.meta.UsageCount(id)
	must(err, "failed to read %s block %d", r.name, id)
	return count
}

// Offset returns the start of a block in units from the start of the region
func (r *region) Offset(handle Handle) int {
	id, _ := r.usedInfo(handle)
	offset, err := r.meta.Offset(id)
	must(err, "failed to read %s block %d", r.name, id)
	return offset
}

// ByteOffset returns the start of a block in bytes from the start of the region
func (r *region) ByteOffset(handle Handle) int {
	return r.Offset(handle) * r.unitBytes
}

// Size returns the size of a block in units
func (r *region) Size(handle Handle) int {
	id, _ := r.usedInfo(handle)
	size, err := r.meta.Size(id)
	must(err, "failed to read %s block %d", r.name, id)
	return size
}

// Encoding returns the encoding of the block's current source
func (r *region) Encoding(handle Handle) commit.Encoding {
	_, info := r.usedInfo(handle)
	return info.identity.Encoding
}

// Source returns the bytes last uploaded to the block, or nil for raw blocks
func (r *region) Source(handle Handle) []byte {
	_, info := r.usedInfo(handle)
	return info.source
}

// Dirty returns true if the block is waiting to be committed
func (r *region) Dirty(handle Handle) bool {
	_, info := r.usedInfo(handle)
	return info.dirty
}

// SetSource replaces the data backing a block and flags it dirty. The block keeps its place in
// memory, so the new data must fit in it. Other blocks created from the same source and shape
// are not affected.
func (r *region) SetSource(handle Handle, source []byte, encoding commit.Encoding) {
	id, info := r.usedInfo(handle)

	if !encoding.IsValid() {
		invalidRequest("%s block %d can't use unknown encoding %s", r.name, id, encoding)
	}

	units, err := r.meta.Size(id)
	must(err, "failed to read %s block %d", r.name, id)

	identity := info.identity.withSource(source, encoding)
	r.checkSource(identity, source, units)

	if !info.raw {
		r.unindex(id, info)
		if _, taken := r.identities.Get(identity); !taken {
			r.identities.Put(identity, id)
			info.indexed = true
		}
	}

	info.identity = identity
	info.source = source
	r.markDirtyInfo(info)

	r.validateIfRequested()
}

// MarkDirty flags a block to be committed again by the next commit pass
func (r *region) MarkDirty(handle Handle) {
	_, info := r.usedInfo(handle)
	r.markDirtyInfo(info)
}

// VRAM returns a writable view of the display memory behind a block, for clients that fill
// raw blocks directly
func (r *region) VRAM(handle Handle) []byte {
	id, _ := r.usedInfo(handle)

	offset, err := r.meta.Offset(id)
	must(err, "failed to read %s block %d", r.name, id)
	size, err := r.meta.Size(id)
	must(err, "failed to read %s block %d", r.name, id)

	return r.sink.Region(offset*r.unitBytes, size*r.unitBytes)
}

// Reclaim is the frame boundary. Every block pending removal becomes free space, adjacent
// free space is merged, and the commit queues are rebuilt from the dirty blocks in use. It
// returns quickly when no blocks are pending removal or dirty.
func (r *region) Reclaim() {
	if r.meta.PendingRemovalCount() > 0 || r.dirtyCount > 0 {
		r.reclaimPass()
	}

	r.delayCommit = false
	r.validateIfRequested()
}

// CommitPlain writes every queued block with an unencoded source to display memory. When
// useDMA is set, blocks that don't need a cell offset are written with DMA transfers.
func (r *region) CommitPlain(useDMA bool) (commit.PassStats, error) {
	stats, err := r.scheduler.CommitPlain(r.sink, useDMA)
	r.counters.commit.Add(stats)
	if err != nil {
		return stats, errors.Wrapf(err, "%s plain commit failed", r.name)
	}

	return stats, nil
}

// CommitCompressed decodes every queued block with a compressed source into display memory
func (r *region) CommitCompressed() (commit.PassStats, error) {
	stats, err := r.scheduler.CommitCompressed(r.sink, r.decoder)
	r.counters.commit.Add(stats)
	if err != nil {
		return stats, errors.Wrapf(err, "%s compressed commit failed", r.name)
	}

	return stats, nil
}

// Update runs the whole per-frame sequence: Reclaim, then CommitPlain, then CommitCompressed.
// It should be called once per frame during blanking.
func (r *region) Update(useDMA bool) error {
	r.Reclaim()

	if _, err := r.CommitPlain(useDMA); err != nil {
		return err
	}

	_, err := r.CommitCompressed()
	return err
}

// Validate checks the region's block metadata, identity index and dirty accounting for
// consistency. It should never return an error.
func (r *region) Validate() error {
	err := r.meta.Validate()
	if err != nil {
		return errors.Wrapf(err, "%s block metadata", r.name)
	}

	dirty := 0
	err = r.meta.VisitAllRegions(func(id metadata.BlockID, block metadata.Suballocation) error {
		if block.Status == metadata.BlockFree {
			return nil
		}

		info, ok := block.UserData.(*blockInfo)
		if !ok || info == nil {
			if block.Status == metadata.BlockUsed {
				return errors.Newf("used %s block %d has no block info", r.name, id)
			}
			return nil
		}

		if info.dirty {
			dirty++
		}

		if info.raw && info.indexed {
			return errors.Newf("raw %s block %d is in the identity index", r.name, id)
		}

		if info.indexed {
			current, found := r.identities.Get(info.identity)
			if !found || current != id {
				return errors.Newf("%s block %d is marked indexed but the index does not refer to it", r.name, id)
			}
		}

		if info.binding.Tiles != NoHandle {
			status, err := r.meta.Status(metadata.BlockID(info.binding.Tiles))
			if err != nil || status != metadata.BlockUsed {
				return errors.Newf("%s block %d is bound to tile set %d which is not in use", r.name, id, info.binding.Tiles)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if dirty != r.dirtyCount {
		return errors.Newf("%s region counts %d dirty blocks, but %d were found", r.name, r.dirtyCount, dirty)
	}

	r.identities.Iter(func(identity Identity, id metadata.BlockID) bool {
		userData, userErr := r.meta.UserData(id)
		if userErr != nil {
			err = errors.Newf("%s identity index refers to block %d which is not in use", r.name, id)
			return true
		}

		info, ok := userData.(*blockInfo)
		if !ok || info == nil || !info.indexed || info.identity != identity {
			err = errors.Newf("%s identity index entry for block %d does not match the block", r.name, id)
			return true
		}

		return false
	})

	return err
}

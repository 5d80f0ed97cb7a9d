package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

const (
	snapshotPrefix      = "catalog-snapshots"
	snapshotContentType = "text/html; charset=utf-8"
)

// SnapshotArchive keeps the rendered catalog page of each sync cycle
type SnapshotArchive struct {
	storage StorageService
	bucket  string
}

func NewSnapshotArchive(storage StorageService, bucket string) *SnapshotArchive {
	return &SnapshotArchive{
		storage: storage,
		bucket:  bucket,
	}
}

// ObjectName is where the snapshot of cycleID is stored
func ObjectName(cycleID string) string {
	return path.Join(snapshotPrefix, cycleID+".html")
}

// Save uploads document as the snapshot of cycleID and returns its object name
func (a *SnapshotArchive) Save(ctx context.Context, cycleID, document string) (string, error) {
	if cycleID == "" || strings.ContainsAny(cycleID, "/\\") {
		return "", fmt.Errorf("invalid cycle id %q", cycleID)
	}
	return a.storage.StreamUpload(ctx, a.bucket, ObjectName(cycleID), strings.NewReader(document), snapshotContentType)
}

// Load returns the snapshot stored for cycleID
func (a *SnapshotArchive) Load(ctx context.Context, cycleID string) ([]byte, error) {
	if cycleID == "" || strings.ContainsAny(cycleID, "/\\") {
		return nil, fmt.Errorf("%w: invalid cycle id %q", ErrObjectNotFound, cycleID)
	}
	return a.storage.Download(ctx, a.bucket, ObjectName(cycleID))
}

package storageutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

// ProfilePath returns the object name of an archived profile.
func ProfilePath(profileID string) string {
	return fmt.Sprintf("profiles/%s.pb.lz4", strings.Replace(profileID, "-", "", -1))
}

// CompressedWrite compresses and writes data to the bucket.
func CompressedWrite(ctx context.Context, b *blob.Bucket, objectName string, write func(io.Writer) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ow, err := b.NewWriter(ctx, objectName, &blob.WriterOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	err = write(zw)
	if err != nil {
		// Canceling before closing aborts the write
		cancel()
		_ = ow.Close()
		return err
	}
	err = zw.Close()
	if err != nil {
		cancel()
		_ = ow.Close()
		return err
	}
	return ow.Close()
}

// ReadCompressed reads and uncompresses an object written with
// CompressedWrite. If the object doesn't exist, it returns ErrObjectNotFound.
func ReadCompressed(ctx context.Context, b *blob.Bucket, objectName string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	or, err := b.NewReader(ctx, objectName, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	defer or.Close()
	return io.ReadAll(lz4.NewReader(or))
}

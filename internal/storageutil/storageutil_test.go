package storageutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"
)

var fileBlobBucket *blob.Bucket

func TestMain(m *testing.M) {
	temporaryDirectory, err := os.MkdirTemp(os.TempDir(), "pprof-profiles-*")
	if err != nil {
		log.Fatalf("couldn't create a temporary directory: %s", err.Error())
	}

	fileBlobBucket, err = blob.OpenBucket(context.Background(), "file://localhost/"+temporaryDirectory)
	if err != nil {
		log.Fatalf("couldn't open a local filesystem bucket: %s", err.Error())
	}

	code := m.Run()

	if err := fileBlobBucket.Close(); err != nil {
		log.Printf("couldn't close the local filesystem bucket: %s", err.Error())
	}

	err = os.RemoveAll(temporaryDirectory)
	if err != nil {
		log.Printf("couldn't remove the temporary directory: %s", err.Error())
	}

	os.Exit(code)
}

func TestProfilePath(t *testing.T) {
	got := ProfilePath("1f6a1c2e-6e1b-4c55-9d1e-3f0d6a9c2b10")
	if got != "profiles/1f6a1c2e6e1b4c559d1e3f0d6a9c2b10.pb.lz4" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestCompressedWriteAndRead(t *testing.T) {
	ctx := context.Background()
	originalData := []byte{0x0a, 0x04, 0x08, 0x01, 0x10, 0x02, 0x32, 0x00}

	memBlobBucket := memblob.OpenBucket(nil)
	defer memBlobBucket.Close()

	tests := []struct {
		name   string
		bucket *blob.Bucket
	}{
		{name: "Filesystem", bucket: fileBlobBucket},
		{name: "Memory", bucket: memBlobBucket},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			objectName := ProfilePath(uuid.New().String())
			err := CompressedWrite(ctx, test.bucket, objectName, func(w io.Writer) error {
				_, err := w.Write(originalData)
				return err
			})
			if err != nil {
				t.Fatalf("we should be able to write: %v", err)
			}

			object, err := test.bucket.ReadAll(ctx, objectName)
			if err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			uncompressedData, err := io.ReadAll(lz4.NewReader(bytes.NewReader(object)))
			if err != nil {
				t.Fatalf("we should be able to uncompress the data: %v", err)
			}
			if !bytes.Equal(originalData, uncompressedData) {
				t.Fatal("data should be identical")
			}

			data, err := ReadCompressed(ctx, test.bucket, objectName)
			if err != nil {
				t.Fatalf("we should be able to read the data back: %v", err)
			}
			if !bytes.Equal(originalData, data) {
				t.Fatal("data should be identical")
			}
		})
	}
}

func TestCompressedWriteFailure(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	objectName := ProfilePath(uuid.New().String())
	writeErr := errors.New("encoding failed")
	err := CompressedWrite(ctx, bucket, objectName, func(w io.Writer) error {
		return writeErr
	})
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected the write error, got %v", err)
	}
	exists, err := bucket.Exists(ctx, objectName)
	if err != nil {
		t.Fatalf("we should be able to check the object: %v", err)
	}
	if exists {
		t.Fatal("a failed write should not leave an object behind")
	}
}

func TestReadCompressedNotFound(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	_, err := ReadCompressed(context.Background(), bucket, ProfilePath(uuid.New().String()))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

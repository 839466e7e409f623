package message

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bhandras/delight/rtc/internal/crypto"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

const (
	uploadSessionsURL = "files/upload_sessions"
	defaultChunkSize  = 1 << 20
)

// UploadFiles encrypts and uploads files to spaceID and returns their
// descriptors with encrypted names, ready to attach to an activity.
//
// Uploads run one at a time across the client, so chunks of concurrent
// callers never interleave on the wire.
func (c *Client) UploadFiles(ctx context.Context, spaceID string, files ...Upload) ([]wire.File, error) {
	_, secret, err := c.spaceKey(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	out := make([]wire.File, 0, len(files))
	for _, f := range files {
		var uploaded wire.File
		err := c.uploads.Do(ctx, func(ctx context.Context) error {
			var err error
			uploaded, err = c.upload(ctx, f, secret)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		out = append(out, uploaded)
	}
	return out, nil
}

func (c *Client) upload(ctx context.Context, f Upload, secret []byte) (wire.File, error) {
	data, err := crypto.Seal(f.Data, secret)
	if err != nil {
		return wire.File{}, err
	}
	size := int64(len(data))

	var session wire.UploadSession
	err = transport.Post(ctx, c.doer, uploadSessionsURL, wire.UploadSessionRequest{FileSize: size}, &session)
	if err != nil {
		return wire.File{}, fmt.Errorf("open upload session: %w", err)
	}

	for offset := 0; offset < len(data); offset += c.chunkSize {
		end := min(offset+c.chunkSize, len(data))
		chunk := wire.UploadChunk{Offset: int64(offset), Data: data[offset:end]}
		if err := c.doer.Do(ctx, http.MethodPut, session.UploadURL, chunk, nil); err != nil {
			return wire.File{}, fmt.Errorf("upload chunk at %d: %w", offset, err)
		}
	}

	var done wire.FinishedUpload
	err = transport.Post(ctx, c.doer, session.FinishUploadURL, wire.FinishUploadRequest{FileSize: size}, &done)
	if err != nil {
		return wire.File{}, fmt.Errorf("finish upload: %w", err)
	}
	logger.Debugf("[message] uploaded %s (%d bytes)", f.Name, size)

	name, err := crypto.SealString([]byte(f.Name), secret)
	if err != nil {
		return wire.File{}, err
	}
	return wire.File{
		URL:         done.URL,
		DisplayName: name,
		FileSize:    int64(len(f.Data)),
		MimeType:    f.MimeType,
	}, nil
}

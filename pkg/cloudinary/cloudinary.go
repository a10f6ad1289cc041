package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Answer files are documents and archives, never images, so they are stored as raw assets.
const resourceType = "raw"

var answerTags = []string{"evalium", "answer"}

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores answer files on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New validates the credentials and builds the upload client.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Save uploads the file under the configured folder. The key is already unique per answer,
// so uploads never overwrite each other.
func (s *Service) Save(ctx context.Context, key string, reader io.Reader, _ int64, _ string) (string, string, error) {
	publicID := PublicID(key)
	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       publicID,
		ResourceType:   resourceType,
		Tags:           answerTags,
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload answer file: %w", err)
	}
	if result.Error.Message != "" {
		return "", "", fmt.Errorf("upload answer file: %s", result.Error.Message)
	}

	s.logger.Debug().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("answer file uploaded")
	return result.PublicID, result.SecureURL, nil
}

// Delete removes an uploaded answer file. Unknown ids are not an error.
func (s *Service) Delete(ctx context.Context, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("delete answer file: %w", err)
	}

	s.logger.Debug().Str("public_id", publicID).Str("result", result.Result).Msg("answer file deleted")
	return nil
}

// PublicID turns a storage key such as "answers/12/4/f81d.pdf" into a Cloudinary public id,
// replacing anything outside [A-Za-z0-9_.-] in each path segment. Raw assets keep their
// extension in the public id.
func PublicID(key string) string {
	segments := strings.Split(path.Clean("/"+key), "/")
	cleaned := segments[:0]
	for _, segment := range segments {
		segment = strings.Trim(strings.Map(publicIDRune, segment), "-.")
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}
	if len(cleaned) == 0 {
		return "answer"
	}
	return strings.Join(cleaned, "/")
}

func publicIDRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		return r
	default:
		return '-'
	}
}

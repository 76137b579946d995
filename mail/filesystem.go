package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mwillfox/authgate/notify"
)

// FilesystemSender writes each OTP message to a JSON file under a
// directory. It stands in for SMTP during local development and tests.
type FilesystemSender struct {
	directory string
	log       *zap.Logger
}

func NewFilesystemSender(directory string, log *zap.Logger) (*FilesystemSender, error) {
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("create mail directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FilesystemSender{directory: directory, log: log}, nil
}

func (f *FilesystemSender) NotifyOTP(_ context.Context, msg notify.OTPMessage) error {
	entry := map[string]any{
		"to":        msg.Email,
		"code":      msg.Code,
		"validity":  msg.Validity.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	content, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal otp mail: %w", err)
	}

	path := filepath.Join(f.directory, fmt.Sprintf("%d.json", time.Now().UnixNano()))
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("write otp mail: %w", err)
	}

	f.log.Info("otp written to filesystem",
		zap.String("path", path),
		zap.String("to", msg.Email),
	)
	return nil
}

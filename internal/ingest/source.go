package ingest

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
)

// NotificationSource yields the notifications currently on the device
type NotificationSource interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
}

// FileSource reads a JSON array of notifications from a file, as saved from
// termux-notification-list
type FileSource struct {
	Path string
}

// Notifications implements NotificationSource
func (s FileSource) Notifications(ctx context.Context) ([]models.Notification, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, s.Path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, s.Path, err)
	}
	defer f.Close()
	return DecodeNotifications(f)
}

// CommandSource runs a command that prints the notification list as JSON
type CommandSource struct {
	Name string
	Args []string
}

// DefaultCommand is the Termux API command listing notifications
const DefaultCommand = "termux-notification-list"

// Notifications implements NotificationSource
func (s CommandSource) Notifications(ctx context.Context) ([]models.Notification, error) {
	name := s.Name
	if name == "" {
		name = DefaultCommand
	}
	out, err := exec.CommandContext(ctx, name, s.Args...).Output()
	if err != nil {
		return nil, errors.ChannelError(errors.CodeChannelUnavailable, name, err)
	}
	var list []models.Notification
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, errors.ChannelError(errors.CodeChannelMalformed, name, err)
	}
	return list, nil
}

// SliceSource serves a fixed list, for replays and tests
type SliceSource []models.Notification

// Notifications implements NotificationSource
func (s SliceSource) Notifications(context.Context) ([]models.Notification, error) {
	return s, nil
}

// DecodeNotifications reads a JSON array of notifications
func DecodeNotifications(r io.Reader) ([]models.Notification, error) {
	var list []models.Notification
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, errors.ChannelError(errors.CodeChannelMalformed, "notifications", err)
	}
	return list, nil
}

// DecodeSMS reads a JSON array of inbox messages
func DecodeSMS(r io.Reader) ([]models.SMS, error) {
	var list []models.SMS
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, errors.ChannelError(errors.CodeChannelMalformed, "sms", err)
	}
	return list, nil
}

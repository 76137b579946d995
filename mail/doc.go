// Package mail ships the built-in OTP delivery backends.
//
// [SMTPSender] sends the code over SMTP; [FilesystemSender] writes each
// message to a JSON file and is meant for local development and tests.
// Both implement notify.Notifier.
package mail

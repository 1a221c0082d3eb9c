package sessions

import "errors"

var (
	// ErrNoActiveSession is returned by Backup when the tenant has neither a
	// running instance nor session files on disk.
	ErrNoActiveSession = errors.New("no active session to back up")
	// ErrSessionRead is returned when the session source exists but its
	// contents cannot be read.
	ErrSessionRead = errors.New("session data unreadable")
	// ErrSessionWrite is returned when restored files cannot be written.
	ErrSessionWrite = errors.New("session data unwritable")
	// ErrNoBackupFound is returned by Restore when the tenant has no active
	// backup row.
	ErrNoBackupFound = errors.New("no backup found")
	// ErrEmptyBackup is returned when the active backup row holds no files.
	ErrEmptyBackup = errors.New("backup contains no session data")
	// ErrConflict is returned when a restore would clobber a live session and
	// force was not set.
	ErrConflict = errors.New("live session exists, restore requires force")
)

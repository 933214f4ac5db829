package statsfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/archive"
)

type Platform int32

const (
	PlatformUnknown Platform = iota
	PlatformWindows
	PlatformXbox
	PlatformPlayStation
	PlatformLinux
	PlatformMac
)

func (p Platform) String() string {
	switch p {
	case PlatformWindows:
		return "windows"
	case PlatformXbox:
		return "xbox"
	case PlatformPlayStation:
		return "playstation"
	case PlatformLinux:
		return "linux"
	case PlatformMac:
		return "mac"
	}
	return "unknown"
}

// SessionInfo describes one recording session. Start and end times are seconds
// on the session clock. Every field is fixed size or a string, so rewriting the
// block on close with only EndTime changed keeps its length.
type SessionInfo struct {
	AppTitleID      int32
	GUID            string
	Timestamp       string
	StartTime       float32
	EndTime         float32
	Platform        Platform
	Language        string
	GameClass       string
	MapName         string
	MapURL          string
	SessionInstance int32
	OwningNetID     string
	GameTypeID      int32
	PlaylistID      int32
	Multiplayer     bool
}

func (s *SessionInfo) Serialize(ar *archive.Archive) {
	ar.Int32(&s.AppTitleID)
	ar.String(&s.GUID)
	ar.String(&s.Timestamp)
	ar.Float32(&s.StartTime)
	ar.Float32(&s.EndTime)
	platform := int32(s.Platform)
	ar.Int32(&platform)
	s.Platform = Platform(platform)
	ar.String(&s.Language)
	ar.String(&s.GameClass)
	ar.String(&s.MapName)
	ar.String(&s.MapURL)
	ar.OptInt32(archive.FeatureSessionInstance, &s.SessionInstance, 0)
	ar.OptString(archive.FeatureOwningNetID, &s.OwningNetID, "")
	ar.OptInt32(archive.FeatureGameTypeAndPlaylist, &s.GameTypeID, 0)
	ar.OptInt32(archive.FeatureGameTypeAndPlaylist, &s.PlaylistID, 0)
	ar.OptBool(archive.FeatureSessionType, &s.Multiplayer, false)
}

// Duration is the recorded session length in seconds
func (s *SessionInfo) Duration() float32 {
	if s.EndTime < s.StartTime {
		return 0
	}
	return s.EndTime - s.StartTime
}

// Key identifies the session instance as GUID:instance
func (s *SessionInfo) Key() string {
	return FormatSessionKey(s.GUID, s.SessionInstance)
}

func FormatSessionKey(guid string, instance int32) string {
	return fmt.Sprintf("%s:%d", guid, instance)
}

// ParseSessionKey splits a GUID:instance key. ok is false for keys without an instance part.
func ParseSessionKey(key string) (guid string, instance int32, ok bool, err error) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return key, 0, false, nil
	}
	n, err := strconv.ParseInt(key[i+1:], 10, 32)
	if err != nil || key[:i] == "" {
		return "", 0, false, errors.Wrapf(ErrBadSessionKey, "%q", key)
	}
	return key[:i], int32(n), true, nil
}

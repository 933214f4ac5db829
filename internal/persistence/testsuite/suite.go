package testsuite

import (
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/persistence"
	"github.com/stretchr/testify/suite"
)

// Opener returns an empty storage. It is called once per test.
type Opener func() persistence.Storage

// StorageSuite checks that a persistence.Storage keeps sessions, event rows
// and snapshots the way the session database expects.
type StorageSuite struct {
	suite.Suite
	open    Opener
	storage persistence.Storage
}

func NewStorageSuite(open Opener) *StorageSuite {
	return &StorageSuite{open: open}
}

func (s *StorageSuite) SetupTest() {
	s.storage = s.open()
	s.Require().NotNil(s.storage)
}

func (s *StorageSuite) TearDownTest() {
	if err := s.storage.Close(); err != nil {
		log.WithField("test", s.T().Name()).Warnf("Failed to close storage: %v", err)
	}
}

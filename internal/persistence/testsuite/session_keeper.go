package testsuite

import (
	"fmt"
	"sync"

	"github.com/snowflk/statsdb/internal/persistence"
)

// Test for saving sessions and reading them back
func (s *StorageSuite) TestSessionKeeper_Save() {
	nSessions := 10
	var wg sync.WaitGroup
	wg.Add(nSessions)
	for i := 0; i < nSessions; i++ {
		go func(i int) {
			defer wg.Done()
			err := s.storage.SaveSession(rawSession(fmt.Sprintf("guid-%d", i), int32(i)))
			s.Assert().Nil(err, "session %d cannot be saved", i)
		}(i)
	}
	wg.Wait()

	for i := 0; i < nSessions; i++ {
		expected := rawSession(fmt.Sprintf("guid-%d", i), int32(i))
		session, err := s.storage.GetSession(expected.Key)
		if err != nil {
			s.T().Fatal(err)
		}
		s.Assert().Equal(expected, session, "Session does not match")
	}
}

// Saving a session again replaces the stored row
func (s *StorageSuite) TestSessionKeeper_Save_Replaces() {
	session := rawSession("guid", 1)
	s.Require().NoError(s.storage.SaveSession(session))
	session.EndTime = 900
	session.MapName = "CTF-Coret"
	s.Require().NoError(s.storage.SaveSession(session))

	stored, err := s.storage.GetSession(session.Key)
	s.Require().NoError(err)
	s.Assert().Equal(session, stored)

	keys, err := s.storage.FindSessions(persistence.Pattern("*"))
	s.Require().NoError(err)
	s.Assert().Equal([]string{session.Key}, keys)
}

func (s *StorageSuite) TestSessionKeeper_Get_NotExist() {
	_, err := s.storage.GetSession("guid:0")
	s.Assert().ErrorIs(err, persistence.ErrSessionNotExist)
	_, err = s.storage.GetSession("")
	s.Assert().ErrorIs(err, persistence.ErrSessionKeyEmpty)
	err = s.storage.SaveSession(persistence.RawSession{Key: "bad key"})
	s.Assert().ErrorIs(err, persistence.ErrSessionKeyInvalid)
}

// Test for finding sessions and instances by pattern
func (s *StorageSuite) TestSessionKeeper_Find() {
	for _, guid := range []string{"alpha", "alpine", "beta"} {
		for instance := int32(2); instance >= 0; instance-- {
			s.Require().NoError(s.storage.SaveSession(rawSession(guid, instance)))
		}
	}

	keys, err := s.storage.FindSessions(persistence.Pattern("alp*:1"))
	s.Require().NoError(err)
	s.Assert().Equal([]string{"alpha:1", "alpine:1"}, keys)

	keys, err = s.storage.FindSessions(persistence.Pattern("beta:*"))
	s.Require().NoError(err)
	s.Assert().Equal([]string{"beta:0", "beta:1", "beta:2"}, keys)

	keys, err = s.storage.FindSessions(persistence.Pattern(""))
	s.Require().NoError(err)
	s.Assert().Empty(keys)

	instances, err := s.storage.Instances("alpha")
	s.Require().NoError(err)
	s.Assert().Equal([]int32{0, 1, 2}, instances)

	instances, err = s.storage.Instances("gamma")
	s.Require().NoError(err)
	s.Assert().Empty(instances)
}

// Deleting a session drops its events and snapshots
func (s *StorageSuite) TestSessionKeeper_Delete() {
	session := rawSession("guid", 0)
	other := rawSession("guid", 1)
	s.Require().NoError(s.storage.SaveSession(session))
	s.Require().NoError(s.storage.SaveSession(other))
	s.Require().NoError(s.storage.AppendEvents(session.Key, rawEvents(0, 5)))
	s.Require().NoError(s.storage.AppendEvents(other.Key, rawEvents(0, 3)))
	s.Require().NoError(s.storage.SaveSnapshot(session.Key, "aggregates", []byte("{}")))

	s.Require().NoError(s.storage.DeleteSession(session.Key))
	_, err := s.storage.GetSession(session.Key)
	s.Assert().ErrorIs(err, persistence.ErrSessionNotExist)
	n, err := s.storage.CountEvents(session.Key)
	s.Require().NoError(err)
	s.Assert().Equal(uint64(0), n)
	_, err = s.storage.GetSnapshot(session.Key, "aggregates")
	s.Assert().ErrorIs(err, persistence.ErrSnapshotNotExist)

	n, err = s.storage.CountEvents(other.Key)
	s.Require().NoError(err)
	s.Assert().Equal(uint64(3), n)

	s.Assert().ErrorIs(s.storage.DeleteSession(session.Key), persistence.ErrSessionNotExist)

	// a deleted session can be stored again
	s.Require().NoError(s.storage.SaveSession(session))
	s.Assert().NoError(s.storage.AppendEvents(session.Key, rawEvents(0, 5)))
}

package testsuite

import (
	"fmt"
	"sync"

	"github.com/snowflk/statsdb/internal/persistence"
)

// Test for appending events in batches
// After that, the whole events will be validated by ordering and content
func (s *StorageSuite) TestEventKeeper_Append_Ordering() {
	session := rawSession("guid", 0)
	s.Require().NoError(s.storage.SaveSession(session))

	nBatches := 10
	batchSize := 25
	// append batches out of order
	for b := nBatches - 1; b >= 0; b-- {
		err := s.storage.AppendEvents(session.Key, rawEvents(b*batchSize, batchSize))
		if err != nil {
			s.T().Fatal(err)
		}
	}

	total := nBatches * batchSize
	n, err := s.storage.CountEvents(session.Key)
	s.Require().NoError(err)
	s.Assert().Equal(uint64(total), n)

	events, err := s.storage.GetEvents(session.Key, 0, 0)
	s.Require().NoError(err)
	s.Assert().Equal(rawEvents(0, total), events, "Events are not stored in index order")
}

// Test for reading events with offset and limit
func (s *StorageSuite) TestEventKeeper_Get_OffsetLimit() {
	session := rawSession("guid", 0)
	s.Require().NoError(s.storage.SaveSession(session))
	s.Require().NoError(s.storage.AppendEvents(session.Key, rawEvents(0, 100)))

	limit := uint64(30)
	for offset := uint64(0); offset < 100; offset += limit {
		events, err := s.storage.GetEvents(session.Key, offset, limit)
		if err != nil {
			s.T().Fatal(fmt.Sprintf("Cannot get events with offset: %d, limit: %d", offset, limit))
		}
		expected := int(limit)
		if offset+limit > 100 {
			expected = int(100 - offset)
		}
		s.Assert().Equal(rawEvents(int(offset), expected), events)
	}

	events, err := s.storage.GetEvents(session.Key, 100, 10)
	s.Require().NoError(err)
	s.Assert().Empty(events)

	events, err = s.storage.GetEvents(session.Key, 95, 0)
	s.Require().NoError(err)
	s.Assert().Len(events, 5)
}

func (s *StorageSuite) TestEventKeeper_GetByIndex() {
	session := rawSession("guid", 0)
	s.Require().NoError(s.storage.SaveSession(session))
	s.Require().NoError(s.storage.AppendEvents(session.Key, rawEvents(0, 50)))

	events, err := s.storage.GetEventsByIndex(session.Key, []int{42, 3, 77, 0, 3})
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Assert().Equal(0, events[0].Index)
	s.Assert().Equal(3, events[1].Index)
	s.Assert().Equal(rawEvents(42, 1)[0], events[2])

	events, err = s.storage.GetEventsByIndex(session.Key, nil)
	s.Require().NoError(err)
	s.Assert().Empty(events)
}

// Sessions do not share rows and an index can only be stored once
func (s *StorageSuite) TestEventKeeper_Isolation() {
	first := rawSession("guid", 0)
	second := rawSession("guid", 1)
	s.Require().NoError(s.storage.SaveSession(first))
	s.Require().NoError(s.storage.SaveSession(second))

	var wg sync.WaitGroup
	wg.Add(2)
	for _, key := range []string{first.Key, second.Key} {
		go func(key string) {
			defer wg.Done()
			s.Assert().NoError(s.storage.AppendEvents(key, rawEvents(0, 20)))
		}(key)
	}
	wg.Wait()

	err := s.storage.AppendEvents(first.Key, rawEvents(19, 2))
	s.Assert().ErrorIs(err, persistence.ErrEventExists)
	n, err := s.storage.CountEvents(first.Key)
	s.Require().NoError(err)
	s.Assert().Equal(uint64(20), n, "a rejected batch stores nothing")

	err = s.storage.AppendEvents("guid:7", rawEvents(0, 1))
	s.Assert().ErrorIs(err, persistence.ErrSessionNotExist)
	s.Assert().ErrorIs(s.storage.AppendEvents(first.Key, nil), persistence.ErrDataEmpty)
}

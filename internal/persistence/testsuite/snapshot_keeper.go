package testsuite

import (
	"fmt"
	"sync"
	"time"

	"github.com/snowflk/statsdb/internal/persistence"
)

// Test for saving snapshot
// The list of snapshots will be created and saved
// The content snapshot will be validate through getting function
func (s *StorageSuite) TestSnapshotKeeper_Save() {
	nSource := 5
	nName := 5
	now := time.Now()

	// Error if no snapshot is found
	_, err := s.storage.GetSnapshot("source-1", "name-1")
	s.Assert().ErrorIs(err, persistence.ErrSnapshotNotExist)

	var wg sync.WaitGroup
	wg.Add(nSource)
	for sourceNum := 1; sourceNum <= nSource; sourceNum++ {
		go func(sourceNum int) {
			defer wg.Done()
			source := fmt.Sprintf("source-%d", sourceNum)
			for nameNum := 1; nameNum <= nName; nameNum++ {
				name := fmt.Sprintf("name-%d", nameNum)
				payload := []byte(fmt.Sprintf("%d_%d", sourceNum, nameNum))
				err := s.storage.SaveSnapshot(source, name, payload)
				s.Assert().Nil(err, fmt.Sprintf("%s from %s cannot be created", name, source))
			}
		}(sourceNum)
	}
	wg.Wait()

	for sourceNum := 1; sourceNum <= nSource; sourceNum++ {
		source := fmt.Sprintf("source-%d", sourceNum)
		for nameNum := 1; nameNum <= nName; nameNum++ {
			name := fmt.Sprintf("name-%d", nameNum)
			snapshot, err := s.storage.GetSnapshot(source, name)
			if err != nil {
				s.T().Fatal(err, fmt.Sprintf("%s from %s cannot be found", name, source))
			}
			s.Assert().WithinDuration(now, snapshot.Timestamp, time.Minute)
			expectedSnapshot := persistence.RawSnapshot{
				Source:    source,
				Name:      name,
				Payload:   []byte(fmt.Sprintf("%d_%d", sourceNum, nameNum)),
				Timestamp: now,
			}
			snapshot.Timestamp = now
			s.Assert().Equal(expectedSnapshot, snapshot, "Snapshot does not match")
		}
	}
}

// Test for saving snapshot for multiple times
// The snapshot's content will be expected the latest one
func (s *StorageSuite) TestSnapshotKeeper_Save_Multiple_Times() {
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.storage.SaveSnapshot("source", "aggregates", []byte(fmt.Sprintf("v%d", i))))
	}
	snapshot, err := s.storage.GetSnapshot("source", "aggregates")
	s.Require().NoError(err)
	s.Assert().Equal([]byte("v4"), snapshot.Payload)

	names, err := s.storage.FindSnapshots("source", persistence.Pattern("*"))
	s.Require().NoError(err)
	s.Assert().Equal([]string{"aggregates"}, names)
}

func (s *StorageSuite) TestSnapshotKeeper_Find() {
	for _, name := range []string{"aggregates", "aggregates-r1", "report", "aggregates-r2"} {
		s.Require().NoError(s.storage.SaveSnapshot("source", name, []byte(name)))
	}
	s.Require().NoError(s.storage.SaveSnapshot("other", "aggregates-r9", []byte("x")))

	names, err := s.storage.FindSnapshots("source", persistence.Pattern("aggregates-*"))
	s.Require().NoError(err)
	s.Assert().Equal([]string{"aggregates-r1", "aggregates-r2"}, names)

	names, err = s.storage.FindSnapshots("missing", persistence.Pattern("*"))
	s.Require().NoError(err)
	s.Assert().Empty(names)

	s.Assert().ErrorIs(s.storage.SaveSnapshot("", "name", nil), persistence.ErrSnapshotSourceEmpty)
	s.Assert().ErrorIs(s.storage.SaveSnapshot("source", " ", nil), persistence.ErrSnapshotNameEmpty)
}

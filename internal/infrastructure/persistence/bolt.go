package persistence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/session"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

var (
	sessionBucket = []byte("session")
	prefsBucket   = []byte("preferences")

	keyToken      = []byte("token")
	keyUser       = []byte("user")
	keyDefaultAge = []byte("default_age")
)

// BoltStore keeps client state in a single bbolt file: credentials in the
// session bucket, preferences in their own bucket so sign-out keeps them.
type BoltStore struct {
	db  *bolt.DB
	log zerolog.Logger
}

// OpenBolt opens (or creates) the state file.
func OpenBolt(path string, log zerolog.Logger) (*BoltStore, error) {
	ctx := context.Background()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to create state directory", err, "4e1d2c3b-5a69-4788-9a0b-1c2d3e4f5a6b")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to open state file", err, "5f2e3d4c-6b7a-4899-ab0c-2d3e4f5a6b7c")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{sessionBucket, prefsBucket} {
			if _, e := tx.CreateBucketIfNotExists(name); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to initialise state buckets", err, "6a3f4e5d-7c8b-49a0-bc1d-3e4f5a6b7c8d")
	}
	return &BoltStore{
		db:  db,
		log: log.With().Str("component", "bolt-persistence").Str("path", path).Logger(),
	}, nil
}

// Close releases the file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) get(ctx context.Context, bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to read state", err, "7b4a5f6e-8d9c-4ab1-8d2e-4f5a6b7c8d9e")
	}
	return out, nil
}

func (s *BoltStore) put(ctx context.Context, bucket, key, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to write state", err, "8c5b6a7f-9e0d-4bc2-9e3f-5a6b7c8d9e0f")
	}
	return nil
}

func (s *BoltStore) Token(ctx context.Context) (string, error) {
	v, err := s.get(ctx, sessionBucket, keyToken)
	return string(v), err
}

func (s *BoltStore) SetToken(ctx context.Context, token string) error {
	return s.put(ctx, sessionBucket, keyToken, []byte(token))
}

func (s *BoltStore) User(ctx context.Context) (*user.User, error) {
	v, err := s.get(ctx, sessionBucket, keyUser)
	if err != nil || len(v) == 0 {
		return nil, err
	}
	var u user.User
	if err := json.Unmarshal(v, &u); err != nil {
		// A corrupt record is treated as absent; the next sign-in rewrites it.
		s.log.Warn().Err(err).Msg("discarding malformed user record")
		return nil, nil
	}
	return &u, nil
}

func (s *BoltStore) SetUser(ctx context.Context, u *user.User) error {
	if u == nil {
		return s.delete(ctx, sessionBucket, keyUser)
	}
	enc, err := json.Marshal(u)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to encode user record", err, "9d6c7b8a-0f1e-4cd3-8f4a-6b7c8d9e0f1a")
	}
	return s.put(ctx, sessionBucket, keyUser, enc)
}

// DefaultAge returns the remembered age context. Values outside the valid range are ignored.
func (s *BoltStore) DefaultAge(ctx context.Context) (int, bool, error) {
	v, err := s.get(ctx, prefsBucket, keyDefaultAge)
	if err != nil || len(v) == 0 {
		return 0, false, err
	}
	age, convErr := strconv.Atoi(string(v))
	if convErr != nil || !conversation.ValidAgeContext(age) {
		s.log.Warn().Str("value", string(v)).Msg("ignoring invalid default age")
		return 0, false, nil
	}
	return age, true, nil
}

func (s *BoltStore) SetDefaultAge(ctx context.Context, age int) error {
	if err := conversation.ValidateAge(ctx, age); err != nil {
		return err
	}
	return s.put(ctx, prefsBucket, keyDefaultAge, []byte(strconv.Itoa(age)))
}

func (s *BoltStore) ClearSession(ctx context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(sessionBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(sessionBucket)
		return err
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to clear session state", err, "0e7d8c9b-1a2f-4de4-9a5b-7c8d9e0f1a2b")
	}
	return nil
}

func (s *BoltStore) delete(ctx context.Context, bucket, key []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerPersistence, platformerrors.ErrorTypeInternal,
			"failed to delete state", err, "1f8e9d0c-2b3a-4ef5-8b6c-8d9e0f1a2b3c")
	}
	return nil
}

var _ session.Persistence = (*BoltStore)(nil)

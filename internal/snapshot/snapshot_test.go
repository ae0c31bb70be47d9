package snapshot

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	cmds  [][]string
	stdin []byte
	out   []byte
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, containerName string, cmd []string, stdin io.Reader) ([]byte, error) {
	f.cmds = append(f.cmds, cmd)
	if stdin != nil {
		f.stdin, _ = io.ReadAll(stdin)
	}
	return f.out, f.err
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	f.body, _ = io.ReadAll(input.Body)
	return &manager.UploadOutput{}, nil
}

type fakeDownloader struct {
	content []byte
}

func (f *fakeDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error) {
	n, err := w.WriteAt(f.content, 0)
	return int64(n), err
}

// fakeLister serves keys the way S3 does: ascending lexicographic
// order, pageSize keys per page, continuation token between pages.
type fakeLister struct {
	keys     []string
	pageSize int
	calls    int
}

func (f *fakeLister) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.calls++
	sorted := append([]string(nil), f.keys...)
	sort.Strings(sorted)

	start := 0
	if input.ContinuationToken != nil {
		start, _ = strconv.Atoi(*input.ContinuationToken)
	}
	end := len(sorted)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &s3.ListObjectsV2Output{}
	for i := start; i < end; i++ {
		out.Contents = append(out.Contents, types.Object{Key: &sorted[i]})
	}
	if end < len(sorted) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func testStore(up *fakeUploader, down *fakeDownloader, ls *fakeLister) *Store {
	return &Store{
		bucket:     "codecarbon-snapshots",
		uploader:   up,
		downloader: down,
		lister:     ls,
		now:        func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSave(t *testing.T) {
	ex := &fakeExecer{out: []byte("-- dump --\n")}
	up := &fakeUploader{}
	store := testStore(up, nil, nil)

	key, err := store.Save(context.Background(), ex, "codecarbon-postgres", "codecarbon-user", "codecarbon_db", "codecarbon")
	require.NoError(t, err)

	assert.Equal(t, "codecarbon/20260825T120000Z.sql", key)
	require.Len(t, ex.cmds, 1)
	assert.Equal(t, []string{"pg_dump", "--clean", "--if-exists", "-U", "codecarbon-user", "codecarbon_db"}, ex.cmds[0])
	assert.Equal(t, "codecarbon-snapshots", aws.ToString(up.input.Bucket))
	assert.Equal(t, key, aws.ToString(up.input.Key))
	assert.Equal(t, "-- dump --\n", string(up.body))
}

func TestRestoreExplicitKey(t *testing.T) {
	ex := &fakeExecer{}
	down := &fakeDownloader{content: []byte("CREATE TABLE t ();\n")}
	store := testStore(nil, down, nil)

	err := store.Restore(context.Background(), ex, "codecarbon-postgres", "codecarbon-user", "codecarbon_db", "codecarbon", "codecarbon/20260101T000000Z.sql")
	require.NoError(t, err)

	require.Len(t, ex.cmds, 1)
	assert.Equal(t, []string{"psql", "-U", "codecarbon-user", "-d", "codecarbon_db"}, ex.cmds[0])
	assert.Equal(t, "CREATE TABLE t ();\n", string(ex.stdin))
}

func TestRestoreFallsBackToLatest(t *testing.T) {
	ex := &fakeExecer{}
	down := &fakeDownloader{content: []byte("ok")}
	ls := &fakeLister{keys: []string{
		"codecarbon/20260101T000000Z.sql",
		"codecarbon/20260825T120000Z.sql",
		"codecarbon/20250615T090000Z.sql",
	}}
	store := testStore(nil, down, ls)

	err := store.Restore(context.Background(), ex, "codecarbon-postgres", "u", "db", "codecarbon", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(ex.stdin))
}

func TestLatest(t *testing.T) {
	ls := &fakeLister{keys: []string{
		"codecarbon/20250101T000000Z.sql",
		"codecarbon/20260825T120000Z.sql",
		"codecarbon/notes.txt",
	}}
	store := testStore(nil, nil, ls)

	key, err := store.Latest(context.Background(), "codecarbon")
	require.NoError(t, err)
	assert.Equal(t, "codecarbon/20260825T120000Z.sql", key)
}

func TestLatestWalksEveryPage(t *testing.T) {
	// 1500 daily snapshots: the newest key only shows up on the
	// second page of the ascending listing.
	base := time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 1500; i++ {
		keys = append(keys, fmt.Sprintf("codecarbon/%s.sql", base.AddDate(0, 0, i).Format("20060102T150405Z")))
	}
	ls := &fakeLister{keys: keys, pageSize: 1000}
	store := testStore(nil, nil, ls)

	key, err := store.Latest(context.Background(), "codecarbon")
	require.NoError(t, err)

	sort.Strings(keys)
	assert.Equal(t, keys[len(keys)-1], key)
	assert.Equal(t, 2, ls.calls)
}

func TestLatestEmpty(t *testing.T) {
	store := testStore(nil, nil, &fakeLister{})
	_, err := store.Latest(context.Background(), "codecarbon")
	assert.ErrorContains(t, err, "no snapshots found")
}

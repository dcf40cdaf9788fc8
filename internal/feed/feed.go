package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/unigen/internal/log"
	"github.com/dmorgan81/unigen/internal/page"
	"github.com/dmorgan81/unigen/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var ErrNoBucket = errors.New("feed requires S3_BUCKET")

// maxHeads bounds concurrent HeadObject calls while building a feed.
const maxHeads = 8

type s3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Generator builds an RSS feed of the images uploaded under prefix.
type Generator struct {
	client    s3API
	presigner presignAPI
	templator *page.Templator
	bucket    string
	prefix    string
	expiry    time.Duration
}

func NewS3Generator(i *do.Injector) (*Generator, error) {
	client := do.MustInvoke[*s3.Client](i)
	return &Generator{
		client:    client,
		presigner: s3.NewPresignClient(client),
		templator: do.MustInvoke[*page.Templator](i),
		bucket:    do.MustInvokeNamed[string](i, "bucket"),
		prefix:    do.MustInvokeNamed[string](i, "key_prefix"),
		expiry:    do.MustInvokeNamed[time.Duration](i, "presign_expiry"),
	}, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	if g.bucket == "" {
		return nil, ErrNoBucket
	}

	log := log.FromContextOrDiscard(ctx).WithGroup("feed").With("bucket", g.bucket, "prefix", g.prefix)
	log.Info("generating rss feed")

	feed := feeds.Feed{
		Title:       "unigen",
		Description: "Generated images",
		Link:        &feeds.Link{Href: "s3://" + g.bucket + "/" + g.prefix + "/"},
		Updated:     time.Now(),
	}

	pager := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(g.prefix + "/"),
	})

	var keys []string
	for pager.HasMorePages() {
		listing, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, lo.FilterMap(listing.Contents, func(o s3types.Object, _ int) (string, bool) {
			key := aws.ToString(o.Key)
			return key, strings.HasSuffix(key, ".png")
		})...)
	}

	// Listing is finished before any HeadObject starts, so an error above
	// never leaves goroutines behind.
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxHeads)
	for _, key := range keys {
		key := key
		group.Go(func() error {
			item, err := g.item(ctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			feed.Add(item)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}

func (g *Generator) item(ctx context.Context, key string) (*feeds.Item, error) {
	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.expiry))
	if err != nil {
		return nil, err
	}

	meta := store.DecodeMetadata(out.Metadata)
	html, err := g.templator.Template(ctx, page.Params{
		Image:  req.URL,
		Model:  meta["model"],
		Prompt: meta["prompt"],
		Date:   meta["date"],
	})
	if err != nil {
		return nil, err
	}

	return &feeds.Item{
		Id:          key,
		Title:       lo.Ternary(meta["prompt"] != "", meta["prompt"], key),
		Link:        &feeds.Link{Href: req.URL},
		Description: string(html),
		Updated:     aws.ToTime(out.LastModified),
	}, nil
}

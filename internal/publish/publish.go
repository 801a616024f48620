package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cachepolicy"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/contenthash"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/outdir"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Upload kinds reported to Recorder.
const (
	KindArchive   = "archive"
	KindSignature = "signature"
	KindSite      = "site"
)

// siteUploaders bounds concurrent site file PutObject calls; the limiter
// still sets the overall pace.
const siteUploaders = 4

// ObjectPutter is the subset of the S3 API used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ParameterPutter is the subset of the SSM API used to record a release.
type ParameterPutter interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// Recorder receives upload counts. *metrics.BuildMetrics satisfies it.
type Recorder interface {
	AddPublishUpload(kind string, bytes int64)
}

type nopRecorder struct{}

func (nopRecorder) AddPublishUpload(string, int64) {}

type Options struct {
	Logger log.Logger

	Bucket   string
	Prefix   string
	SSMParam string

	// SigningKeyARN enables archive signing when set; KMS must then be non-nil.
	SigningKeyARN string

	SiteFiles bool
	// RPS caps site file uploads per second.
	RPS   float64
	Cache cachepolicy.Policy

	S3      ObjectPutter
	SSM     ParameterPutter
	KMS     KeyAPI
	Metrics Recorder
}

// Release describes what a Publish call stored.
type Release struct {
	Hash         string
	ArchiveKey   string
	SignatureKey string
	SiteObjects  int
	Bytes        int64
}

type Publisher struct {
	opts    Options
	limiter *rate.Limiter
	signer  *Signer
}

// NewFromConfig builds a Publisher whose clients come from cfg.
func NewFromConfig(cfg aws.Config, opts Options) (*Publisher, error) {
	opts.S3 = s3.NewFromConfig(cfg)
	opts.SSM = ssm.NewFromConfig(cfg)
	if opts.SigningKeyARN != "" {
		opts.KMS = kms.NewFromConfig(cfg)
	}
	return New(opts)
}

func New(opts Options) (*Publisher, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("publish: Bucket is required")
	}
	if opts.SSMParam == "" {
		return nil, xerrors.New("publish: SSMParam is required")
	}
	if opts.S3 == nil || opts.SSM == nil {
		return nil, xerrors.New("publish: S3 and SSM clients are required")
	}
	if opts.SigningKeyARN != "" && opts.KMS == nil {
		return nil, xerrors.New("publish: KMS client is required when SigningKeyARN is set")
	}
	if opts.SiteFiles && opts.RPS <= 0 {
		return nil, xerrors.Newf("publish: RPS must be > 0 (got %v)", opts.RPS)
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Cache == (cachepolicy.Policy{}) {
		opts.Cache = cachepolicy.Default()
	}

	p := &Publisher{opts: opts}
	if opts.SiteFiles {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS)))
	}
	if opts.SigningKeyARN != "" {
		p.signer = NewSigner(opts.KMS, opts.SigningKeyARN)
	}
	return p, nil
}

// key joins the configured prefix with name.
func (p *Publisher) key(name string) string {
	if p.opts.Prefix == "" {
		return name
	}
	return path.Join(p.opts.Prefix, name)
}

// Publish uploads archivePath (and optionally the contents of buildDir),
// signs it when configured, then records its hash in SSM.
func (p *Publisher) Publish(ctx context.Context, buildDir, archivePath string) (*Release, error) {
	L := p.opts.Logger

	hash, err := contenthash.SumFile(archivePath)
	if err != nil {
		return nil, err
	}
	rel := &Release{Hash: hash, ArchiveKey: p.key(hash + ".zip")}

	n, err := p.putFile(ctx, rel.ArchiveKey, archivePath, hash, &s3.PutObjectInput{
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return nil, err
	}
	rel.Bytes += n
	p.opts.Metrics.AddPublishUpload(KindArchive, n)
	L.Info(ctx, "archive uploaded", "bucket", p.opts.Bucket, "key", rel.ArchiveKey, "bytes", n)

	if p.opts.SiteFiles {
		count, bytes, err := p.putSite(ctx, buildDir)
		if err != nil {
			return nil, err
		}
		rel.SiteObjects = count
		rel.Bytes += bytes
		L.Info(ctx, "site files uploaded", "objects", count, "bytes", bytes)
	}

	if p.signer != nil {
		sig, err := p.signer.SignDigest(ctx, hash)
		if err != nil {
			return nil, err
		}
		rel.SignatureKey = rel.ArchiveKey + ".sig"
		if err := p.putBytes(ctx, rel.SignatureKey, sig, "application/octet-stream"); err != nil {
			return nil, err
		}
		rel.Bytes += int64(len(sig))
		p.opts.Metrics.AddPublishUpload(KindSignature, int64(len(sig)))
		L.Info(ctx, "archive signature uploaded", "key", rel.SignatureKey, "key_arn", p.opts.SigningKeyARN)
	}

	_, err = p.opts.SSM.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(p.opts.SSMParam),
		Value:     aws.String(hash),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "put SSM parameter %s", p.opts.SSMParam)
	}
	L.Info(ctx, "release recorded", "ssm_param", p.opts.SSMParam, "hash", hash)

	return rel, nil
}

func (p *Publisher) putSite(ctx context.Context, buildDir string) (int, int64, error) {
	names, err := outdir.Files(buildDir)
	if err != nil {
		return 0, 0, err
	}

	sizes := make([]int64, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(siteUploaders)
	for i, name := range names {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return xerrors.Wrap(err, "wait for upload slot")
			}
			n, err := p.putFile(gctx, p.key(path.Join("site", name)), filepath.Join(buildDir, filepath.FromSlash(name)), "", &s3.PutObjectInput{
				CacheControl: aws.String(p.opts.Cache.For(name)),
				ContentType:  aws.String(contentType(name)),
			})
			if err != nil {
				return err
			}
			sizes[i] = n
			p.opts.Metrics.AddPublishUpload(KindSite, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	var total int64
	for _, n := range sizes {
		total += n
	}
	return len(names), total, nil
}

// putFile uploads the file at src to key. When hash is set it is sent as
// the object's SHA-256 checksum so S3 rejects a corrupted body.
func (p *Publisher) putFile(ctx context.Context, key, src, hash string, in *s3.PutObjectInput) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, xerrors.Wrapf(err, "open %s", src)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, xerrors.Wrapf(err, "stat %s", src)
	}

	in.Bucket = aws.String(p.opts.Bucket)
	in.Key = aws.String(key)
	in.Body = f
	in.ContentLength = aws.Int64(fi.Size())
	if hash != "" {
		raw, err := hex.DecodeString(hash)
		if err != nil {
			return 0, xerrors.Wrapf(err, "decode hash %q", hash)
		}
		in.ChecksumSHA256 = aws.String(base64.StdEncoding.EncodeToString(raw))
	}

	if _, err := p.opts.S3.PutObject(ctx, in); err != nil {
		return 0, xerrors.Wrapf(err, "put S3 object s3://%s/%s", p.opts.Bucket, key)
	}
	return fi.Size(), nil
}

func (p *Publisher) putBytes(ctx context.Context, key string, data []byte, ctype string) error {
	_, err := p.opts.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ctype),
	})
	if err != nil {
		return xerrors.Wrapf(err, "put S3 object s3://%s/%s", p.opts.Bucket, key)
	}
	return nil
}

func contentType(name string) string {
	if ct := cachepolicy.ContentType(name); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

package inject

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/unigen/internal/backend"
	"github.com/dmorgan81/unigen/internal/capability"
	"github.com/dmorgan81/unigen/internal/config"
	"github.com/dmorgan81/unigen/internal/feed"
	"github.com/dmorgan81/unigen/internal/handle"
	"github.com/dmorgan81/unigen/internal/handler"
	"github.com/dmorgan81/unigen/internal/image"
	"github.com/dmorgan81/unigen/internal/log"
	"github.com/dmorgan81/unigen/internal/metrics"
	"github.com/dmorgan81/unigen/internal/page"
	"github.com/dmorgan81/unigen/internal/param"
	"github.com/dmorgan81/unigen/internal/prompt"
	"github.com/dmorgan81/unigen/internal/store"
	"github.com/dmorgan81/unigen/internal/text"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func Setup(ctx context.Context, settings *config.Settings) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Settings](injector, settings)
	do.ProvideValue[*slog.Logger](injector, log)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		opts := lo.Ternary(settings.Region != "",
			[]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(settings.Region)},
			nil)
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return cfg, err
		}
		if settings.Bucket != "" && !settings.SuppressCredentialWarning {
			if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
				log.Warn("S3_BUCKET is set but AWS credentials could not be resolved", "error", err)
			}
		}
		return cfg, nil
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: settings.BackendTimeout})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)

	do.ProvideNamedValue[string](injector, "bucket", settings.Bucket)
	do.ProvideNamedValue[string](injector, "key_prefix", settings.KeyPrefix)
	do.ProvideNamedValue[string](injector, "image_model", settings.ImageModel)
	do.ProvideNamedValue[string](injector, "prompts_param", settings.PromptsParam)
	do.ProvideNamedValue[time.Duration](injector, "presign_expiry", settings.PresignExpiry)

	do.ProvideNamed[*backend.Client](injector, "text_backend", func(i *do.Injector) (*backend.Client, error) {
		return newBackend(ctx, i, "text", settings.TextBackendURL, settings.TextBackendToken, settings.TextBackendTokenParam), nil
	})
	do.ProvideNamed[*backend.Client](injector, "image_backend", func(i *do.Injector) (*backend.Client, error) {
		return newBackend(ctx, i, "image", settings.ImageBackendURL, settings.ImageBackendToken, settings.ImageBackendTokenParam), nil
	})

	do.Provide[capability.Set](injector, func(i *do.Injector) (capability.Set, error) {
		set := capability.Detect(ctx, settings.ProbeTimeout,
			do.MustInvokeNamed[*backend.Client](i, "text_backend"),
			do.MustInvokeNamed[*backend.Client](i, "image_backend"),
		)
		metrics.BackendAvailable("text", set.TextBackend)
		metrics.BackendAvailable("image", set.Image)
		return set, nil
	})

	do.Provide[*text.Service](injector, func(i *do.Injector) (*text.Service, error) {
		client := do.MustInvokeNamed[*backend.Client](i, "text_backend")
		return text.NewService(
			do.MustInvoke[capability.Set](i).TextBackend,
			text.NewHTTPLoader(client, settings.TextModel),
		), nil
	})
	do.Provide[*image.Service](injector, func(i *do.Injector) (*image.Service, error) {
		client := do.MustInvokeNamed[*backend.Client](i, "image_backend")
		return image.NewService(
			do.MustInvoke[capability.Set](i).Image,
			&image.LocalGenerator{Client: client},
			image.Defaults{
				Model:  settings.ImageModel,
				Height: settings.ImageHeight,
				Width:  settings.ImageWidth,
				Steps:  settings.ImageSteps,
				Device: image.SelectDevice(settings.ImageDevice),
			},
		), nil
	})

	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		switch {
		case settings.Bucket != "":
			return store.NewS3Uploader(do.MustInvoke[*s3.Client](i), settings.Bucket, settings.PresignExpiry), nil
		case settings.LocalStoreDir != "":
			return &store.FileUploader{Dir: settings.LocalStoreDir}, nil
		default:
			// Upload reports ErrBucketNotConfigured, which the handler turns
			// into a null URL.
			return &store.S3Uploader{}, nil
		}
	})

	do.ProvideValue[*page.Templator](injector, &page.Templator{})
	do.Provide[*prompt.Catalog](injector, prompt.NewCatalog)
	do.Provide[*feed.Generator](injector, feed.NewS3Generator)
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*handle.API](injector, handle.NewAPI)

	return injector
}

// newBackend builds the client for an optional backend. A token that cannot
// be resolved leaves the client unconfigured, so detection reports the
// backend unavailable instead of failing startup.
func newBackend(ctx context.Context, i *do.Injector, name, baseURL, token, tokenParam string) *backend.Client {
	client := &backend.Client{
		HTTP:    do.MustInvoke[*http.Client](i),
		BaseURL: baseURL,
	}
	if baseURL == "" {
		return client
	}

	token, err := param.Resolve(ctx, do.MustInvoke[param.Fetcher](i), token, tokenParam)
	if err != nil {
		log.FromContextOrDiscard(ctx).Warn("resolving backend token failed, disabling backend",
			"backend", name, "param", tokenParam, "error", err)
		client.BaseURL = ""
		return client
	}
	client.Token = token
	return client
}

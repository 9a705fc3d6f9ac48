// Package publish uploads evaluation result bundles to Azure Blob Storage
// so CI runs can archive outcomes where dashboards and later comparisons
// can reach them.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/utils"
)

// blobClient is the slice of the azblob client the publisher needs. The
// real *azblob.Client satisfies it; tests substitute a fake.
type blobClient interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// Options configure a Publisher.
type Options struct {
	// Account is the storage account name, or a full https:// service URL
	// for sovereign clouds and emulators.
	Account   string
	Container string
	Prefix    string
}

// Publisher uploads bundles into one container using the ambient Azure
// credential chain (environment, workload identity, managed identity,
// azd/az CLI).
type Publisher struct {
	client    blobClient
	container string
	prefix    string
}

// New builds a Publisher authenticated by DefaultAzureCredential.
func New(opts Options) (*Publisher, error) {
	if opts.Account == "" {
		return nil, fmt.Errorf("publish: storage account is required (set publish.account in %s or pass --account)", ".prompteval.yaml")
	}
	if opts.Container == "" {
		return nil, fmt.Errorf("publish: container is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("publish: building credential: %w", err)
	}

	client, err := azblob.NewClient(serviceURL(opts.Account), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("publish: building blob client: %w", err)
	}

	return newWithClient(client, opts.Container, opts.Prefix), nil
}

func newWithClient(client blobClient, container, prefix string) *Publisher {
	return &Publisher{client: client, container: container, prefix: prefix}
}

// Upload streams a bundle into the container under a date-partitioned name
// derived from the outcome, creating the container on first use. Returns
// the blob name the bundle was stored under.
func (p *Publisher) Upload(ctx context.Context, outcome *models.BatchOutcome, bundle io.Reader) (string, error) {
	_, err := p.client.CreateContainer(ctx, p.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return "", classify(fmt.Errorf("creating container %q: %w", p.container, err))
	}

	name := blobName(p.prefix, outcome)
	_, err = p.client.UploadStream(ctx, p.container, name, bundle, &azblob.UploadStreamOptions{
		Metadata: map[string]*string{
			"batch_id":  utils.Ptr(outcome.BatchID),
			"tier":      utils.Ptr(strconv.Itoa(outcome.Setup.Tier)),
			"artifacts": utils.Ptr(strconv.Itoa(outcome.Digest.TotalArtifacts)),
			"passed":    utils.Ptr(strconv.Itoa(outcome.Digest.Passed)),
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("uploading %q: %w", name, err))
	}
	return name, nil
}

// blobName lays bundles out by UTC date so listing a day's runs is a prefix
// query: <prefix>2026/08/24/<batch-id>.json.zst
func blobName(prefix string, outcome *models.BatchOutcome) string {
	return prefix + outcome.Timestamp.UTC().Format("2006/01/02") + "/" + outcome.BatchID + ".json.zst"
}

// serviceURL expands a bare account name into the public-cloud endpoint and
// passes full URLs through untouched.
func serviceURL(account string) string {
	if strings.Contains(account, "://") {
		return account
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", account)
}

// classify rewrites the opaque service errors operators hit most often into
// actionable messages.
func classify(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case 401, 403:
		return fmt.Errorf("%w (authorization failed; check that the ambient credential has Storage Blob Data Contributor)", err)
	case 404:
		return fmt.Errorf("%w (storage account or container not found; check publish.account)", err)
	default:
		return err
	}
}

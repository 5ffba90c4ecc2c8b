// Package crowd manages the crowdsourcing marketplace side of the
// system: publishing price-check tasks as Mechanical Turk HITs and
// pulling worker answers back into the record store.
package crowd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"gopkg.in/yaml.v3"

	"marketprice/internal/model"
)

// RegionName is the only region the MTurk requester API lives in.
const RegionName = "us-east-1"

// TaskDefinition mirrors the YAML HIT template checked into the data
// directory. The layout holds a single "url" parameter.
type TaskDefinition struct {
	HITTypeID         string `yaml:"hit_type_id"`
	HITLayoutID       string `yaml:"hit_layout_id"`
	LifetimeInSeconds int64  `yaml:"lifetime_seconds"`
	MaxAssignments    int32  `yaml:"max_assignments"`
}

// HITTypeDefinition mirrors the YAML template for create-hit-type.
type HITTypeDefinition struct {
	Title                       string `yaml:"title"`
	Description                 string `yaml:"description"`
	Keywords                    string `yaml:"keywords"`
	Reward                      string `yaml:"reward"`
	AssignmentDurationInSeconds int64  `yaml:"assignment_duration_seconds"`
	AutoApprovalDelayInSeconds  int64  `yaml:"auto_approval_delay_seconds"`
}

// LoadTaskDefinition reads a TaskDefinition from a YAML file.
func LoadTaskDefinition(path string) (*TaskDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crowd: read task definition: %w", err)
	}
	var def TaskDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("crowd: parse task definition %q: %w", path, err)
	}
	return &def, nil
}

// LoadHITTypeDefinition reads a HITTypeDefinition from a YAML file.
func LoadHITTypeDefinition(path string) (*HITTypeDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crowd: read HIT type definition: %w", err)
	}
	var def HITTypeDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("crowd: parse HIT type definition %q: %w", path, err)
	}
	return &def, nil
}

// Client wraps the MTurk requester API.
type Client struct {
	api *mturk.Client
}

// NewClient builds a Client from the ambient AWS credential chain.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(RegionName))
	if err != nil {
		return nil, fmt.Errorf("crowd: load AWS config: %w", err)
	}
	return &Client{api: mturk.NewFromConfig(cfg)}, nil
}

// ListBatches returns the distinct batch annotations across all HITs,
// sorted.
func (c *Client) ListBatches(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	if err := c.forEachHIT(ctx, func(hit types.HIT) error {
		seen[aws.ToString(hit.RequesterAnnotation)] = struct{}{}
		return nil
	}); err != nil {
		return nil, err
	}

	batches := make([]string, 0, len(seen))
	for b := range seen {
		if b != "" {
			batches = append(batches, b)
		}
	}
	sort.Strings(batches)
	return batches, nil
}

// DeleteBatch deletes every HIT annotated with batchName and returns
// how many were removed.
func (c *Client) DeleteBatch(ctx context.Context, batchName string) (int, error) {
	n := 0
	err := c.forEachHIT(ctx, func(hit types.HIT) error {
		if aws.ToString(hit.RequesterAnnotation) != batchName {
			return nil
		}
		if _, err := c.api.DeleteHIT(ctx, &mturk.DeleteHITInput{HITId: hit.HITId}); err != nil {
			return fmt.Errorf("crowd: delete HIT %s: %w", aws.ToString(hit.HITId), err)
		}
		n++
		return nil
	})
	return n, err
}

// Prune deletes HITs whose batches have already been imported into the
// store. With force set, every deletable HIT goes regardless of import
// state. HITs still open to workers are always left alone.
func (c *Client) Prune(ctx context.Context, imported map[string]struct{}, force bool) (int, error) {
	n := 0
	err := c.forEachHIT(ctx, func(hit types.HIT) error {
		switch hit.HITStatus {
		case types.HITStatusAssignable, types.HITStatusUnassignable:
			return nil
		}
		batch := aws.ToString(hit.RequesterAnnotation)
		_, wasImported := imported[batch]
		if !force && !wasImported {
			return nil
		}
		if _, err := c.api.DeleteHIT(ctx, &mturk.DeleteHITInput{HITId: hit.HITId}); err != nil {
			return fmt.Errorf("crowd: delete HIT %s: %w", aws.ToString(hit.HITId), err)
		}
		n++
		return nil
	})
	return n, err
}

// CreateBatch publishes one HIT per URL under a shared batch
// annotation. URLs whose HIT creation fails are collected rather than
// aborting the batch.
func (c *Client) CreateBatch(ctx context.Context, def *TaskDefinition, batchName string, urls []string) ([]model.Task, []string, error) {
	var (
		tasks  []model.Task
		failed []string
	)
	for _, u := range urls {
		task, err := c.createTask(ctx, def, batchName, u)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Creating HIT for url %s failed: %v\n", u, err)
			failed = append(failed, u)
			continue
		}
		tasks = append(tasks, *task)
	}
	return tasks, failed, nil
}

func (c *Client) createTask(ctx context.Context, def *TaskDefinition, batchName, taskURL string) (*model.Task, error) {
	out, err := c.api.CreateHITWithHITType(ctx, &mturk.CreateHITWithHITTypeInput{
		HITTypeId:           aws.String(def.HITTypeID),
		HITLayoutId:         aws.String(def.HITLayoutID),
		LifetimeInSeconds:   aws.Int64(def.LifetimeInSeconds),
		MaxAssignments:      aws.Int32(def.MaxAssignments),
		RequesterAnnotation: aws.String(batchName),
		HITLayoutParameters: []types.HITLayoutParameter{
			{Name: aws.String("url"), Value: aws.String(taskURL)},
		},
	})
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(taskURL)
	if err != nil {
		return nil, fmt.Errorf("crowd: parse url %q: %w", taskURL, err)
	}

	creation := time.Now().UTC()
	if out.HIT.CreationTime != nil {
		creation = out.HIT.CreationTime.UTC()
	}
	return &model.Task{
		TaskID:       aws.ToString(out.HIT.HITId),
		CreationTime: creation,
		BatchName:    batchName,
		URL:          taskURL,
		DomainName:   parsed.Host,
	}, nil
}

// CreateHITType registers a HIT type and returns its id.
func (c *Client) CreateHITType(ctx context.Context, def *HITTypeDefinition) (string, error) {
	out, err := c.api.CreateHITType(ctx, &mturk.CreateHITTypeInput{
		Title:                       aws.String(def.Title),
		Description:                 aws.String(def.Description),
		Keywords:                    aws.String(def.Keywords),
		Reward:                      aws.String(def.Reward),
		AssignmentDurationInSeconds: aws.Int64(def.AssignmentDurationInSeconds),
		AutoApprovalDelayInSeconds:  aws.Int64(def.AutoApprovalDelayInSeconds),
	})
	if err != nil {
		return "", fmt.Errorf("crowd: create HIT type: %w", err)
	}
	return aws.ToString(out.HITTypeId), nil
}

// FetchBatch pulls every assignment for the batch and converts the
// answers into raw reports ready for the store.
func (c *Client) FetchBatch(ctx context.Context, batchName string) ([]model.RawReport, error) {
	var reports []model.RawReport
	err := c.forEachHIT(ctx, func(hit types.HIT) error {
		if aws.ToString(hit.RequesterAnnotation) != batchName {
			return nil
		}
		return c.forEachAssignment(ctx, aws.ToString(hit.HITId), nil, func(a types.Assignment) error {
			report, err := buildReport(a)
			if err != nil {
				return err
			}
			reports = append(reports, *report)
			return nil
		})
	})
	return reports, err
}

// ApproveAll approves every submitted assignment and returns the count.
func (c *Client) ApproveAll(ctx context.Context) (int, error) {
	n := 0
	err := c.forEachHIT(ctx, func(hit types.HIT) error {
		statuses := []types.AssignmentStatus{types.AssignmentStatusSubmitted}
		return c.forEachAssignment(ctx, aws.ToString(hit.HITId), statuses, func(a types.Assignment) error {
			if _, err := c.api.ApproveAssignment(ctx, &mturk.ApproveAssignmentInput{
				AssignmentId: a.AssignmentId,
			}); err != nil {
				return fmt.Errorf("crowd: approve assignment %s: %w", aws.ToString(a.AssignmentId), err)
			}
			n++
			return nil
		})
	})
	return n, err
}

func (c *Client) forEachHIT(ctx context.Context, fn func(types.HIT) error) error {
	paginator := mturk.NewListHITsPaginator(c.api, &mturk.ListHITsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("crowd: list HITs: %w", err)
		}
		for _, hit := range page.HITs {
			if err := fn(hit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) forEachAssignment(ctx context.Context, hitID string, statuses []types.AssignmentStatus, fn func(types.Assignment) error) error {
	paginator := mturk.NewListAssignmentsForHITPaginator(c.api, &mturk.ListAssignmentsForHITInput{
		HITId:              aws.String(hitID),
		AssignmentStatuses: statuses,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("crowd: list assignments for HIT %s: %w", hitID, err)
		}
		for _, a := range page.Assignments {
			if err := fn(a); err != nil {
				return err
			}
		}
	}
	return nil
}

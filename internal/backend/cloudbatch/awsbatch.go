package cloudbatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/batch"
	"github.com/aws/aws-sdk-go/service/batch/batchiface"
)

// AWSBatchJobService is the real BatchJobService implementation, backed by
// the classic AWS SDK for Go (v1) batch client.
type AWSBatchJobService struct {
	client batchiface.BatchAPI
}

func NewAWSBatchJobService(region string) (*AWSBatchJobService, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return &AWSBatchJobService{client: batch.New(sess)}, nil
}

func (s *AWSBatchJobService) SubmitJob(ctx context.Context, name, queue, definition string, dependsOn []JobDependency, overrides map[string]string, timeout int) (string, error) {
	input := &batch.SubmitJobInput{
		JobName:       aws.String(name),
		JobQueue:      aws.String(queue),
		JobDefinition: aws.String(definition),
	}

	if len(dependsOn) > 0 {
		deps := make([]*batch.JobDependency, 0, len(dependsOn))
		for _, d := range dependsOn {
			deps = append(deps, &batch.JobDependency{JobId: aws.String(d.JobID), Type: aws.String(d.Type)})
		}
		input.DependsOn = deps
	}

	if timeout > 0 {
		input.Timeout = &batch.JobTimeout{AttemptDurationSeconds: aws.Int64(int64(timeout))}
	}

	if len(overrides) > 0 {
		env := make([]*batch.KeyValuePair, 0, len(overrides))
		for k, v := range overrides {
			env = append(env, &batch.KeyValuePair{Name: aws.String(k), Value: aws.String(v)})
		}
		input.ContainerOverrides = &batch.ContainerOverrides{Environment: env}
	}

	out, err := s.client.SubmitJobWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("submit job %s failed: %w", name, err)
	}
	return aws.StringValue(out.JobId), nil
}

func (s *AWSBatchJobService) DescribeJobs(ctx context.Context, jobIDs []string) ([]JobDescription, error) {
	ids := make([]*string, 0, len(jobIDs))
	for _, id := range jobIDs {
		ids = append(ids, aws.String(id))
	}

	out, err := s.client.DescribeJobsWithContext(ctx, &batch.DescribeJobsInput{Jobs: ids})
	if err != nil {
		return nil, fmt.Errorf("describe jobs failed: %w", err)
	}

	descs := make([]JobDescription, 0, len(out.Jobs))
	for _, j := range out.Jobs {
		descs = append(descs, JobDescription{
			JobID:        aws.StringValue(j.JobId),
			Status:       JobStatus(aws.StringValue(j.Status)),
			StatusReason: aws.StringValue(j.StatusReason),
		})
	}
	return descs, nil
}

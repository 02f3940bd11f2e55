package ratelimit

import (
	"context"
	"testing"
)

func TestBuilder_NoAlgorithmSelectedFails(t *testing.T) {
	_, err := NewBuilder().Build()
	if err == nil {
		t.Fatal("expected error when no algorithm is selected")
	}
}

func TestBuilder_LeakyBucketRequiresPositiveBucketSize(t *testing.T) {
	_, err := NewBuilder().LeakyBucket(0).Build()
	if err == nil {
		t.Fatal("expected error for non-positive bucketSize")
	}
}

func TestBuilder_BuildsUsableFixedWindow(t *testing.T) {
	algo, err := NewBuilder().FixedWindow().Build()
	if err != nil {
		t.Fatal(err)
	}
	cd, err := algo.Countdown(context.Background(), "k", 1, 60)
	if err != nil {
		t.Fatal(err)
	}
	if cd != Admitted {
		t.Fatal("expected first call admitted")
	}
}

func TestBuilder_BuildsUsableLeakyBucket(t *testing.T) {
	algo, err := NewBuilder().LeakyBucket(5).Build()
	if err != nil {
		t.Fatal(err)
	}
	cd, err := algo.Countdown(context.Background(), "k", 1, 60)
	if err != nil {
		t.Fatal(err)
	}
	if cd != Admitted {
		t.Fatal("expected first call admitted")
	}
}

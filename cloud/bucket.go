/*
Copyright © 2026 the automap authors.
This file is part of automap.

automap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

automap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with automap.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud publishes output files to blob storage.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
)

// IsBlob returns whether the given location refers to blob storage,
// i.e. whether it starts with `gs://`, `s3://` or `file://`.
func IsBlob(location string) bool {
	return strings.HasPrefix(location, "gs://") || strings.HasPrefix(location, "s3://") || strings.HasPrefix(location, "file://")
}

// Location is a parsed blob storage destination.
type Location struct {
	// Provider is "file", "gs" or "s3".
	Provider string

	// Bucket is the bucket name, or for the "file" provider the
	// local directory.
	Bucket string

	// Prefix is prepended to the names of published files.
	Prefix string
}

// ParseLocation splits a destination of the form
// 'provider://bucket/prefix' into its parts. For the "file"
// provider the whole path names the directory and there is no prefix.
func ParseLocation(location string) (Location, error) {
	u, err := url.Parse(location)
	if err != nil {
		return Location{}, fmt.Errorf("cloud: parsing location %s: %v", location, err)
	}
	switch u.Scheme {
	case "file":
		dir := u.Host + u.Path
		if dir == "" {
			return Location{}, fmt.Errorf("cloud: location %s has no directory", location)
		}
		return Location{Provider: u.Scheme, Bucket: dir}, nil
	case "gs", "s3":
		if u.Host == "" {
			return Location{}, fmt.Errorf("cloud: location %s has no bucket", location)
		}
		return Location{Provider: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	default:
		return Location{}, fmt.Errorf("cloud: invalid provider %q in %s", u.Scheme, location)
	}
}

// Key returns the object name for a file called name.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// URL returns the location of object key.
func (l Location) URL(key string) string {
	if l.Provider == "file" {
		return "file://" + path.Join(l.Bucket, key)
	}
	return l.Provider + "://" + l.Bucket + "/" + key
}

// OpenBucket opens the bucket of l.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
// Local directories are created if they do not exist.
func OpenBucket(ctx context.Context, l Location) (*blob.Bucket, error) {
	switch l.Provider {
	case "file":
		if err := os.MkdirAll(l.Bucket, 0755); err != nil {
			return nil, fmt.Errorf("cloud: creating bucket directory: %v", err)
		}
		return fileblob.NewBucket(l.Bucket)
	case "gs":
		return gsBucket(ctx, l.Bucket)
	case "s3":
		return s3Bucket(ctx, l.Bucket)
	default:
		return nil, fmt.Errorf("cloud: invalid provider %s", l.Provider)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, fmt.Errorf("cloud: creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name)
}

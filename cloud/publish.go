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

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/sirupsen/logrus"
)

// MaxRetries is the number of times a failed upload is retried.
var MaxRetries uint64 = 5

// Publish uploads each of files to the destination location, naming
// each object after the file's base name. Failed uploads are retried
// with exponential backoff. It returns the locations of the uploaded
// objects.
func Publish(ctx context.Context, dest string, files []string, log logrus.FieldLogger) ([]string, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	loc, err := ParseLocation(dest)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("cloud: publishing %s: %v", f, err)
		}
	}
	bucket, err := OpenBucket(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket for %s: %v", dest, err)
	}
	var o []string
	for _, f := range files {
		key := loc.Key(filepath.Base(f))
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
		err := backoff.RetryNotify(
			func() error { return upload(ctx, bucket, key, f) },
			b,
			func(err error, d time.Duration) {
				log.WithError(err).WithField("file", f).Warnf("upload failed; retrying in %v", d)
			},
		)
		if err != nil {
			return o, fmt.Errorf("cloud: uploading %s to %s: %v", f, loc.URL(key), err)
		}
		o = append(o, loc.URL(key))
		log.WithField("file", loc.URL(key)).Debug("published")
	}
	return o, nil
}

func upload(ctx context.Context, bucket *blob.Bucket, key, file string) error {
	r, err := os.Open(file)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

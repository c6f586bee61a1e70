// Package ros reads inertial data out of ROS bags.
package ros

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/onurbagoren/UW-SLAM/imu"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// topicJSON renders a single topic to newline separated JSON.
func topicJSON(rb *rosbag.RosBag, topic string) (*bytes.Buffer, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[topicKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}
	return msgs, nil
}

// topicKey is the name gobag files a topic's JSON under: lower case, no leading slash, with the
// remaining slashes replaced by underscores.
func topicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// eachLine calls fn with every non-empty line of msgs.
func eachLine(msgs *bytes.Buffer, fn func([]byte) error) error {
	for {
		data, err := msgs.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) > 0 {
			if fnErr := fn(data); fnErr != nil {
				return fnErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	msgs, err := topicJSON(rb, topic)
	if err != nil {
		return nil, err
	}

	all := []map[string]interface{}{}
	err = eachLine(msgs, func(data []byte) error {
		message := map[string]interface{}{}
		if err := json.Unmarshal(data, &message); err != nil {
			return err
		}
		all = append(all, message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// IMUSamplesFromBag converts every sensor_msgs/Imu message on topic into a time ordered stream.
// Sample times are in seconds since origin.
func IMUSamplesFromBag(rb *rosbag.RosBag, topic string, origin Stamp) ([]imu.Sample, error) {
	msgs, err := topicJSON(rb, topic)
	if err != nil {
		return nil, err
	}
	return decodeIMUSamples(msgs, origin)
}

func decodeIMUSamples(msgs *bytes.Buffer, origin Stamp) ([]imu.Sample, error) {
	var samples []imu.Sample
	err := eachLine(msgs, func(data []byte) error {
		var message ImuMessage
		if err := json.Unmarshal(data, &message); err != nil {
			return errors.Wrap(err, "malformed imu message")
		}
		samples = append(samples, SampleFromMessage(&message, origin))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(samples, func(a, b imu.Sample) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})
	return samples, nil
}

// SampleFromMessage converts one message, timed in seconds since origin.
func SampleFromMessage(m *ImuMessage, origin Stamp) imu.Sample {
	w, a := m.Data.AngularVelocity, m.Data.LinearAcceleration
	return imu.Sample{
		Time:            m.Stamp().Since(origin),
		AngularVelocity: r3.Vector{X: w.X, Y: w.Y, Z: w.Z},
		SpecificForce:   r3.Vector{X: a.X, Y: a.Y, Z: a.Z},
	}
}

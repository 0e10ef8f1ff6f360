package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// protocolClient speaks the device's line-JSON provisioning protocol
// over any byte stream. One command out, one response back.
type protocolClient struct {
	conn    io.ReadWriteCloser
	reader  *bufio.Reader
	timeout time.Duration

	// setDeadline is non-nil for transports that support read
	// deadlines (TCP). Serial device files rely on the device
	// answering promptly.
	setDeadline func(time.Time) error
}

// dialDevice opens the provisioning channel. Exactly one of device
// (a serial device file) or tcpAddr must be set.
func dialDevice(device, tcpAddr string, timeout time.Duration) (*protocolClient, error) {
	switch {
	case device != "" && tcpAddr != "":
		return nil, fmt.Errorf("--device and --tcp are mutually exclusive")
	case device != "":
		f, err := os.OpenFile(device, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
		}
		return &protocolClient{conn: f, reader: bufio.NewReader(f), timeout: timeout}, nil
	case tcpAddr != "":
		conn, err := net.DialTimeout("tcp", tcpAddr, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", tcpAddr, err)
		}
		return &protocolClient{
			conn:        conn,
			reader:      bufio.NewReader(conn),
			timeout:     timeout,
			setDeadline: conn.SetReadDeadline,
		}, nil
	default:
		return nil, fmt.Errorf("no device specified; use --device or --tcp")
	}
}

func (c *protocolClient) Close() error {
	return c.conn.Close()
}

// roundTrip sends one command object and returns the device's JSON
// response. Non-JSON lines (the provisioning banner, log noise) are
// skipped.
func (c *protocolClient) roundTrip(command map[string]interface{}) (map[string]interface{}, error) {
	payload, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	if c.setDeadline != nil {
		if err := c.setDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var response map[string]interface{}
		if err := json.Unmarshal([]byte(line), &response); err != nil {
			return nil, fmt.Errorf("malformed response %q: %w", line, err)
		}
		return response, nil
	}
}

// execute runs one command and fails on a protocol-level error
// response.
func (c *protocolClient) execute(command map[string]interface{}) (map[string]interface{}, error) {
	response, err := c.roundTrip(command)
	if err != nil {
		return nil, err
	}
	if status, _ := response["status"].(string); status != "ok" {
		msg, _ := response["msg"].(string)
		return response, fmt.Errorf("device rejected command: %s", msg)
	}
	return response, nil
}

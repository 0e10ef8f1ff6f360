package main

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"
)

// fakeDevice answers one command on the far end of a pipe, optionally
// preceded by banner noise.
func fakeDevice(t *testing.T, conn net.Conn, banner []string, response string) {
	t.Helper()
	go func() {
		reader := bufio.NewReader(conn)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		var cmd map[string]interface{}
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			t.Errorf("device received malformed command %q: %v", line, err)
			return
		}
		for _, b := range banner {
			conn.Write([]byte(b + "\n"))
		}
		conn.Write([]byte(response + "\n"))
	}()
}

func newPipeClient(conn net.Conn) *protocolClient {
	return &protocolClient{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: 2 * time.Second,
	}
}

func TestRoundTripSkipsBanner(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()

	fakeDevice(t, device, []string{
		"===========================================",
		"  SMD Serial Provisioning Mode",
		"Awaiting configuration commands...",
	}, `{"status":"ok","mac":"C4:BE:84:74:86:37"}`)

	client := newPipeClient(host)
	response, err := client.roundTrip(map[string]interface{}{"cmd": "get_info"})
	if err != nil {
		t.Fatalf("roundTrip() error = %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("status = %v, want ok", response["status"])
	}
	if response["mac"] != "C4:BE:84:74:86:37" {
		t.Errorf("mac = %v", response["mac"])
	}
}

func TestExecuteRejectsErrorStatus(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()

	fakeDevice(t, device, nil, `{"status":"error","msg":"missing_ssid"}`)

	client := newPipeClient(host)
	_, err := client.execute(map[string]interface{}{"cmd": "set_wifi"})
	if err == nil {
		t.Fatal("execute() should fail on an error response")
	}
}

func TestDialDeviceFlagValidation(t *testing.T) {
	if _, err := dialDevice("", "", time.Second); err == nil {
		t.Error("no transport should be rejected")
	}
	if _, err := dialDevice("/dev/ttyACM0", "127.0.0.1:5000", time.Second); err == nil {
		t.Error("both transports should be rejected")
	}
}

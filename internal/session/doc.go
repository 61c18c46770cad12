// Package session turns a device's comm section into a liveness probe.
//
// A probe is built by Factory.Open, which only decodes and validates the
// section. Hardware is touched in Check: the serial port is opened (or the
// TCP endpoint dialled) and, when a probe handshake is configured, the send
// string is written and the reply is read until the expect string appears.
// Close releases whatever Check opened and is safe to call more than once.
//
// Comm section layout:
//
//	comm:
//	  serial:
//	    port: /dev/ttyUSB0
//	    speed: 115200        # default 9600
//	    data_bits: 8         # default 8
//	    parity: none         # none|odd|even|mark|space
//	    stop_bits: 1         # 1|1.5|2
//	    timeout: 2s          # bare numbers are seconds
//	  tcp:
//	    host: 192.168.1.50
//	    port: 2000
//	    timeout: 2s
//	  probe:
//	    send: "M115\n"
//	    expect: "ok"
//
// When both serial and tcp are present, serial wins.
package session

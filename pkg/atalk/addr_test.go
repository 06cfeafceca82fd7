package atalk

import "testing"

func TestAddrKind(t *testing.T) {
	tests := []struct {
		addr Addr
		want NodeKind
	}{
		{Addr{Net: 10, Node: 0}, NodeUnknown},
		{Addr{Net: 10, Node: 255}, NodeBroadcast},
		{Addr{Net: 10, Node: 42}, NodeNumbered},
	}
	for _, tt := range tests {
		if got := tt.addr.Kind(); got != tt.want {
			t.Errorf("Addr{%v}.Kind() = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestAppleTalkBroadcastIsBroadcast(t *testing.T) {
	if !AppleTalkBroadcast.IsBroadcast() {
		t.Errorf("AppleTalkBroadcast.IsBroadcast() = false, want true")
	}
	if AppleTalkBroadcast.Net != 0 || AppleTalkBroadcast.Node != 255 {
		t.Errorf("AppleTalkBroadcast = %v, want {0 255}", AppleTalkBroadcast)
	}
}

func TestRandomStartupAddrRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		a := RandomStartupAddr()
		if a.Net < StartupNetMin || a.Net > StartupNetMax {
			t.Fatalf("RandomStartupAddr() net = 0x%04X out of range [0x%04X,0x%04X]", a.Net, StartupNetMin, StartupNetMax)
		}
		if a.Node < 1 || a.Node > 254 {
			t.Fatalf("RandomStartupAddr() node = %d out of range [1,254]", a.Node)
		}
	}
}

func TestClassifySocket(t *testing.T) {
	tests := []struct {
		socket uint8
		want   SocketRegion
	}{
		{0, SocketRegionReserved},
		{1, SocketRegionNBP},
		{4, SocketRegionAEP},
		{2, SocketRegionStatic},
		{127, SocketRegionStatic},
		{128, SocketRegionDynamic},
		{253, SocketRegionDynamic},
		{254, SocketRegionReserved},
		{255, SocketRegionReserved},
	}
	for _, tt := range tests {
		if got := Classify(tt.socket); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.socket, got, tt.want)
		}
	}
}

func TestRandomDynamicSocketRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := RandomDynamicSocket()
		if s < SocketDynamicMin || s > SocketDynamicMax {
			t.Fatalf("RandomDynamicSocket() = %d out of range [%d,%d]", s, SocketDynamicMin, SocketDynamicMax)
		}
	}
}

func TestMacIsZero(t *testing.T) {
	if !ZeroMAC.IsZero() {
		t.Errorf("ZeroMAC.IsZero() = false, want true")
	}
	if BroadcastMAC.IsZero() {
		t.Errorf("BroadcastMAC.IsZero() = true, want false")
	}
}

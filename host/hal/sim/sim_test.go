package sim

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ardnew/xspi/host/hal"
	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

// frameMode encodes a phase layout the way the controller programs it.
func frameMode(cmdBytes, addrBytes, dummyBytes int) uint32 {
	var mode uint32
	mode = reg.TMCmdCount.Set(mode, uint32(cmdBytes-1))
	mode = reg.TMAddrCount.Set(mode, uint32(addrBytes))
	mode = reg.TMDummy.Set(mode, uint32(dummyBytes))
	return mode
}

func assertCS(h *HAL) {
	h.Write32(uint32(reg.TransferCtrl), reg.CtrlIOStart)
	h.Write32(uint32(reg.TransferCtrl), reg.CtrlHostActive)
	h.Write32(uint32(reg.TransferCtrl), reg.CtrlDeviceActive)
}

func releaseCS(h *HAL) {
	h.Write32(uint32(reg.TransferCtrl), reg.CtrlDeviceDisable)
	h.Write32(uint32(reg.TransferCtrl), reg.CtrlIOEnd)
}

func txrx(h *HAL, data []byte) []byte {
	h.Write32(uint32(reg.TXData(len(data))), hal.PackWord(0xFFFFFFFF, data))
	out := make([]byte, len(data))
	hal.UnpackWord(h.Read32(uint32(reg.RXData)), out)
	return out
}

var _ = Describe("HAL", func() {
	var (
		h   *HAL
		mem *Memory
	)

	BeforeEach(func() {
		h = New(Options{})
		mem = NewMemory(4096)
		h.Attach(0, mem)
		Expect(h.Init(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		Expect(h.Close()).To(Succeed())
	})

	It("should report capabilities", func() {
		caps := h.Read32(uint32(reg.Capabilities))
		Expect(reg.CapChipSelects.Get(caps)).To(Equal(uint32(DefaultChipSelects)))
		Expect(reg.CapDMAMaster.Get(caps)).To(Equal(uint32(1)))
		Expect(reg.CapMapping.Get(caps)).To(Equal(uint32(1)))
		Expect(h.Read32(uint32(reg.HostVersion))).To(Equal(uint32(DefaultVersion)))
	})

	It("should self-clear transfer control bits", func() {
		assertCS(h)
		Expect(h.Read32(uint32(reg.TransferCtrl))).To(BeZero())
		Expect(h.Asserted()).To(BeTrue())
		releaseCS(h)
		Expect(h.Asserted()).To(BeFalse())
		Expect(h.Stats().CSAsserts).To(Equal(1))
		Expect(h.Stats().CSDeasserts).To(Equal(1))
	})

	It("should clear interrupt status on write-1", func() {
		h.Write32(uint32(reg.IntSignalEn), reg.IntAll)
		h.Write32(uint32(reg.TransferMode), reg.TMDMAEnable.Put(1))
		buf := make([]byte, 8)
		addr, err := h.DMAAddress(buf)
		Expect(err).NotTo(HaveOccurred())
		assertCS(h)
		h.Write32(uint32(reg.SDMACount), uint32(len(buf)))
		h.Write32(uint32(reg.SDMAAddr), addr)

		Expect(h.Read32(uint32(reg.IntStatus)) & reg.IntDMAComplete).NotTo(BeZero())
		h.Write32(uint32(reg.IntStatus), reg.IntDMAComplete)
		Expect(h.Read32(uint32(reg.IntStatus)) & reg.IntDMAComplete).To(BeZero())
	})

	It("should read the JEDEC ID through the FIFO", func() {
		h.Write32(uint32(reg.TransferMode), frameMode(1, 0, 0))
		assertCS(h)
		txrx(h, []byte{CmdReadID})
		Expect(txrx(h, []byte{0, 0, 0})).To(Equal(DefaultID))
		releaseCS(h)
	})

	It("should report RX not empty only while words are queued", func() {
		Expect(h.Read32(uint32(reg.PresentState)) & reg.PresRxNotEmpty).To(BeZero())
		assertCS(h)
		h.Write32(uint32(reg.TXData(1)), 0xFF)
		Expect(h.Read32(uint32(reg.PresentState)) & reg.PresRxNotEmpty).NotTo(BeZero())
		h.Read32(uint32(reg.RXData))
		Expect(h.Read32(uint32(reg.PresentState)) & reg.PresRxNotEmpty).To(BeZero())
	})

	Context("with DMA", func() {
		BeforeEach(func() {
			h.Write32(uint32(reg.IntSignalEn), reg.IntAll)
		})

		It("should program memory and raise completion", func() {
			payload := []byte("0123456789abcdef")
			addr, err := h.DMAAddress(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint32(DefaultDMABase)))

			h.Write32(uint32(reg.TransferMode), frameMode(1, 3, 0)|reg.TMDMAEnable.Put(1))
			assertCS(h)
			txrx(h, []byte{CmdPageProgram})
			txrx(h, []byte{0x00, 0x01, 0x00})
			h.Write32(uint32(reg.SDMACount), uint32(len(payload)))
			h.Write32(uint32(reg.SDMAAddr), addr)

			Expect(h.Asserted()).To(BeFalse(), "DMA completion releases chip-select")
			Expect(h.InterruptPending()).To(BeTrue())
			Expect(mem.Bytes(0x100, len(payload))).To(Equal(payload))
			Expect(h.Stats().DMATransfers).To(Equal(1))

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			Expect(h.WaitInterrupt(ctx)).To(Succeed())
		})

		It("should pause at intermediate interrupts until re-armed", func() {
			h = New(Options{DMAChunk: 4})
			h.Attach(0, mem)
			Expect(h.Init(context.Background())).To(Succeed())
			mem.Load(0, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

			buf := make([]byte, 10)
			addr, err := h.DMAAddress(buf)
			Expect(err).NotTo(HaveOccurred())

			h.Write32(uint32(reg.TransferMode), frameMode(1, 3, 0)|reg.TMDMAEnable.Put(1)|reg.TMDataRead.Put(1))
			assertCS(h)
			txrx(h, []byte{CmdRead})
			txrx(h, []byte{0, 0, 0})
			h.Write32(uint32(reg.SDMACount), uint32(len(buf)))
			h.Write32(uint32(reg.SDMAAddr), addr)

			rounds := 0
			for h.Read32(uint32(reg.IntStatus))&reg.IntDMAComplete == 0 {
				Expect(h.Read32(uint32(reg.IntStatus)) & reg.IntDMA).NotTo(BeZero())
				h.Write32(uint32(reg.IntStatus), reg.IntDMA)
				h.Write32(uint32(reg.SDMAAddr), h.Read32(uint32(reg.SDMAAddr)))
				rounds++
				Expect(rounds).To(BeNumerically("<", 10))
			}
			Expect(rounds).To(Equal(2))
			Expect(buf).To(Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
		})

		It("should flag an error for unmapped addresses", func() {
			h.Write32(uint32(reg.TransferMode), reg.TMDMAEnable.Put(1))
			assertCS(h)
			h.Write32(uint32(reg.SDMACount), 16)
			h.Write32(uint32(reg.SDMAAddr), 0x1000)
			Expect(h.Read32(uint32(reg.IntStatus)) & reg.IntError).NotTo(BeZero())
			Expect(h.Read32(uint32(reg.ErrIntStatus)) & reg.ErrADMA).NotTo(BeZero())
		})
	})

	Describe("DMAAddress", func() {
		It("should map the same buffer to the same address", func() {
			buf := make([]byte, 32)
			a1, err := h.DMAAddress(buf)
			Expect(err).NotTo(HaveOccurred())
			a2, err := h.DMAAddress(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(a2).To(Equal(a1))

			other, err := h.DMAAddress(make([]byte, 32))
			Expect(err).NotTo(HaveOccurred())
			Expect(other).To(Equal(a1 + 32))
		})

		It("should reject buffers beyond the window", func() {
			small := New(Options{DMAWindow: 64})
			_, err := small.DMAAddress(make([]byte, 128))
			Expect(err).To(MatchError(pkg.ErrNoMemory))
			_, err = small.DMAAddress(nil)
			Expect(err).To(MatchError(pkg.ErrNoMemory))
		})

		It("should hand out mapped buffers", func() {
			buf, err := h.DMABuffer(48)
			Expect(err).NotTo(HaveOccurred())
			Expect(buf).To(HaveLen(48))
			addr, err := h.DMAAddress(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint32(DefaultDMABase)))

			_, err = New(Options{DMAWindow: 16}).DMABuffer(32)
			Expect(err).To(MatchError(pkg.ErrNoMemory))
		})

		It("should rewind after release", func() {
			_, err := h.DMAAddress(make([]byte, 100))
			Expect(err).NotTo(HaveOccurred())
			h.ReleaseDMA()
			addr, err := h.DMAAddress(make([]byte, 4))
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint32(DefaultDMABase)))
		})
	})

	Describe("fault injection", func() {
		It("should hold stuck bits", func() {
			h.Stick(reg.TransferCtrl, reg.CtrlIOStart)
			Expect(h.Read32(uint32(reg.TransferCtrl))).To(Equal(reg.CtrlIOStart))
			h.Stick(reg.TransferCtrl, 0)
			Expect(h.Read32(uint32(reg.TransferCtrl))).To(BeZero())
		})

		It("should mask present state bits", func() {
			h.Mask(reg.PresentState, reg.PresTxNotFull)
			Expect(h.Read32(uint32(reg.PresentState)) & reg.PresTxNotFull).To(BeZero())
		})
	})

	It("should unblock interrupt waiters on close", func() {
		errc := make(chan error, 1)
		go func() { errc <- h.WaitInterrupt(context.Background()) }()
		Expect(h.Close()).To(Succeed())
		Eventually(errc).Should(Receive(MatchError(pkg.ErrClosed)))
	})

	It("should log writes in order", func() {
		h.ResetStats()
		h.Write32(uint32(reg.SDMACount), 256)
		h.Write32(uint32(reg.SampleAdjust), 7)
		Expect(h.Writes()).To(Equal([]Access{
			{Offset: reg.SDMACount, Value: 256},
			{Offset: reg.SampleAdjust, Value: 7},
		}))
		Expect(h.WritesTo(reg.SDMACount)).To(Equal([]uint32{256}))
		Expect(h.Writes()[0].String()).To(Equal("SDMA_CNT <- 0x000100"))
	})
})
